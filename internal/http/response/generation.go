package response

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

// GenerationFailure is the body of a failed generation run. It keeps enough
// of the partial state for an operator to clean up by hand.
type GenerationFailure struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error"`
	ErrorType      string         `json:"error_type"`
	Upstream       string         `json:"upstream,omitempty"`
	Code           string         `json:"code,omitempty"`
	Stage          string         `json:"stage,omitempty"`
	ProjectName    string         `json:"project_name,omitempty"`
	Timestamp      string         `json:"timestamp"`
	GenerationTime float64        `json:"generation_time"`
	RepoURL        string         `json:"github_repo,omitempty"`
	DeploymentID   string         `json:"deployment_id,omitempty"`
	DeploymentURL  string         `json:"deployment_url,omitempty"`
	BuildLogs      []string       `json:"build_logs,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Help           pipeline.Help  `json:"help"`
}

func NewGenerationFailure(err error, now time.Time) GenerationFailure {
	out := GenerationFailure{
		Error:     err.Error(),
		ErrorType: string(apierr.KindOf(err)),
		Upstream:  string(apierr.UpstreamOf(err)),
		Timestamp: now.UTC().Format(time.RFC3339),
		Help:      pipeline.HelpFor(err),
	}
	if e, ok := apierr.As(err); ok {
		out.Code = e.Code
		out.Details = e.Details
	}
	var re *pipeline.RunError
	if errors.As(err, &re) {
		out.Stage = re.Stage
		out.ProjectName = re.Slug
		out.GenerationTime = Seconds(re.Elapsed)
		out.RepoURL = re.RepoURL
		out.DeploymentID = re.DeploymentID
		out.DeploymentURL = re.DeploymentURL
		out.BuildLogs = re.Logs
	}
	return out
}

// RespondGenerationFailure writes the failure body with the status of the
// underlying error kind.
func RespondGenerationFailure(c *gin.Context, err error, now time.Time) {
	c.JSON(apierr.HTTPStatus(err), NewGenerationFailure(err, now))
}

// Seconds rounds d to hundredths for timing fields.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
