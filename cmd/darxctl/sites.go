package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/darx-site-generator/internal/platform/github"
	"github.com/yungbote/darx-site-generator/internal/platform/vercel"
)

type repoDeleter interface {
	Org() string
	DeleteRepo(ctx context.Context, org, name string) error
}

type projectDeleter interface {
	DeleteProject(ctx context.Context, name string) error
}

var errNotConfirmed = errors.New("teardown deletes the repository and the deployment project; pass --yes to confirm")

type teardownResult struct {
	Slug           string `json:"client_slug"`
	RepoDeleted    bool   `json:"repo_deleted"`
	ProjectDeleted bool   `json:"project_deleted"`
}

// teardown removes what a failed or retired generation left behind. Both
// deletions are attempted even if the first fails.
func teardown(ctx context.Context, repos repoDeleter, projects projectDeleter, slug string, confirmed bool) (teardownResult, error) {
	res := teardownResult{Slug: slug}
	if !confirmed {
		return res, errNotConfirmed
	}
	repoErr := repos.DeleteRepo(ctx, repos.Org(), slug)
	res.RepoDeleted = repoErr == nil
	projErr := projects.DeleteProject(ctx, slug)
	res.ProjectDeleted = projErr == nil
	return res, errors.Join(repoErr, projErr)
}

func sitesCmd() *cobra.Command {
	c := &cobra.Command{Use: "sites", Short: "Manage deployed sites"}
	c.AddCommand(sitesTeardownCmd())
	return c
}

func sitesTeardownCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "teardown <slug>",
		Short: "Delete a site's repository and deployment project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withEnv(cmd.Context(), false, func(ctx context.Context, e *env) error {
				gh, err := github.NewClient(e.log, e.cfg.GitHub)
				if err != nil {
					return fmt.Errorf("init github client: %w", err)
				}
				vc, err := vercel.NewClient(e.log, e.cfg.Vercel)
				if err != nil {
					return fmt.Errorf("init vercel client: %w", err)
				}
				res, err := teardown(ctx, gh, vc, args[0], yes)
				if viper.GetBool("json") {
					if jerr := printJSON(res); jerr != nil {
						return jerr
					}
					return err
				}
				cmd.Printf("%s: repo deleted=%v, project deleted=%v\n", res.Slug, res.RepoDeleted, res.ProjectDeleted)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
