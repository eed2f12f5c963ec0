package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	"github.com/yungbote/darx-site-generator/internal/services"
)

func tokensCmd() *cobra.Command {
	c := &cobra.Command{Use: "tokens", Short: "Manage onboarding tokens"}
	c.AddCommand(tokensIssueCmd())
	c.AddCommand(tokensCleanupCmd())
	return c
}

func onboardingService(e *env) *services.OnboardingService {
	dbh := e.DB()
	return services.NewOnboardingService(
		dbh,
		e.log,
		e.cfg.Onboarding,
		clientrepo.NewClientRepo(dbh, e.log),
		clientrepo.NewOnboardingRepo(dbh, e.log),
		clientrepo.NewTokenRepo(dbh, e.log),
		nil,
		nil,
	)
}

func tokensIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <slug>",
		Short: "Issue a single-use onboarding link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), true, func(ctx context.Context, e *env) error {
				link, err := onboardingService(e).IssueLink(ctx, args[0], viper.GetString("operator"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(link)
				}
				cmd.Printf("%s\nslug: %s, expires in %dh\n", link.URL, link.ClientSlug, link.ExpiresInHours)
				return nil
			})
		},
	}
}

func tokensCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete used and expired tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), true, func(ctx context.Context, e *env) error {
				n, err := onboardingService(e).CleanupTokens(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int64{"deleted": n})
				}
				cmd.Printf("deleted %d tokens\n", n)
				return nil
			})
		},
	}
}
