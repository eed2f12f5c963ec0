package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
)

func clientsCmd() *cobra.Command {
	c := &cobra.Command{Use: "clients", Short: "Manage client records"}
	c.AddCommand(clientsListCmd())
	c.AddCommand(clientsStatusCmd("activate", types.StatusActive))
	c.AddCommand(clientsStatusCmd("deactivate", types.StatusInactive))
	return c
}

func clientsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), true, func(ctx context.Context, e *env) error {
				items, err := clientrepo.NewClientRepo(e.DB(), e.log).List(dbctx.Context{Ctx: ctx}, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Slug", "Name", "Status", "Tier", "Website", "Created"})
				for _, cl := range items {
					tw.AppendRow(table.Row{cl.Slug, cl.Name, cl.Status, cl.Tier, cl.WebsiteType, cl.CreatedAt.Format("2006-01-02")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func clientsStatusCmd(use string, status types.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: "Set a client's status to " + string(status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), true, func(ctx context.Context, e *env) error {
				if err := clientrepo.NewClientRepo(e.DB(), e.log).UpdateStatus(dbctx.Context{Ctx: ctx}, args[0], status); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"client_slug": args[0], "status": string(status)})
				}
				cmd.Printf("%s is now %s\n", args[0], status)
				return nil
			})
		},
	}
}
