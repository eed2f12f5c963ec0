package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/gcp"
	"github.com/yungbote/darx-site-generator/internal/services"
)

func backupsCmd() *cobra.Command {
	c := &cobra.Command{Use: "backups", Short: "Inspect generation archives"}
	c.AddCommand(backupsListCmd())
	c.AddCommand(backupsPruneCmd())
	return c
}

func withBackups(ctx context.Context, fn func(ctx context.Context, svc *services.BackupService) error) error {
	return withEnv(ctx, true, func(ctx context.Context, e *env) error {
		store, err := gcp.NewObjectStore(ctx, e.log, e.cfg.GCP)
		if err != nil {
			return fmt.Errorf("open backup store: %w", err)
		}
		return fn(ctx, services.NewBackupService(e.log, store, siterepo.NewBackupRepo(e.DB(), e.log)))
	})
}

func backupsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <slug>",
		Short: "List archives for a site, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(cmd.Context(), func(ctx context.Context, svc *services.BackupService) error {
				items, err := svc.List(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Location", "Size", "Created"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.Location, b.SizeBytes, b.CreatedAt.Format("2006-01-02 15:04:05")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func backupsPruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune <slug>",
		Short: "Delete all but the newest archives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(cmd.Context(), func(ctx context.Context, svc *services.BackupService) error {
				deleted, err := svc.Prune(ctx, args[0], keep)
				if viper.GetBool("json") {
					if jerr := printJSON(map[string]any{"deleted": deleted}); jerr != nil {
						return jerr
					}
					return err
				}
				for _, k := range deleted {
					cmd.Printf("deleted %s\n", k)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 5, "archives to keep (at least 1)")
	return cmd
}
