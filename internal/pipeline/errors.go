package pipeline

import (
	"fmt"
	"time"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

const (
	StageValidate    = "validate"
	StageLock        = "lock"
	StageGate        = "client_gate"
	StageGenerate    = "generate"
	StageRepository  = "repository"
	StagePush        = "push"
	StageCredentials = "credentials"
	StageDeploy      = "deploy"
)

// RunError is a hard failure of a generation run. It carries what was
// created before the failure so an operator can clean up or retry.
type RunError struct {
	Stage         string
	Slug          string
	RepoURL       string
	DeploymentID  string
	DeploymentURL string
	Logs          []string
	Elapsed       time.Duration
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Slug, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Help is the next-steps hint attached to a failure response.
type Help struct {
	Message   string   `json:"message"`
	NextSteps []string `json:"next_steps"`
}

// HelpFor picks the hint from the upstream the error is tagged with.
func HelpFor(err error) Help {
	switch apierr.UpstreamOf(err) {
	case apierr.UpstreamVercel:
		return Help{
			Message: "Deployment failed on Vercel.",
			NextSteps: []string{
				"Check VERCEL_TOKEN is valid",
				"Verify the token has project and deployment permissions",
				"Review the build logs in the Vercel dashboard",
			},
		}
	case apierr.UpstreamBuilderIO:
		return Help{
			Message: "Builder.io configuration failed.",
			NextSteps: []string{
				"Check the Builder.io public and private keys",
				"Verify the keys have permission on the space",
				"Check the organization's space and API quotas",
			},
		}
	case apierr.UpstreamGitHub:
		return Help{
			Message: "GitHub operation failed.",
			NextSteps: []string{
				"Check the GitHub App credentials",
				"Verify the installation can create and write repositories in the org",
				"Check for API rate limiting",
			},
		}
	case apierr.UpstreamLLM:
		return Help{
			Message: "Code generation failed.",
			NextSteps: []string{
				"Check ANTHROPIC_API_KEY is valid",
				"Try simpler requirements or fewer features",
			},
		}
	case apierr.UpstreamGCS:
		return Help{
			Message: "Cloud Storage operation failed.",
			NextSteps: []string{
				"Check the backup bucket exists",
				"Verify the service account can write to it",
			},
		}
	default:
		return Help{
			Message: "An unexpected error occurred.",
			NextSteps: []string{
				"Check the service logs",
				"Verify all API credentials are configured",
				"Contact support if the problem persists",
			},
		}
	}
}
