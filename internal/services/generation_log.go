package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

// GenerationLog writes one log line and one site_generations row per run.
// Its own failures are logged, never returned.
type GenerationLog struct {
	log  *logger.Logger
	repo siterepo.GenerationRepo
}

func NewGenerationLog(baseLog *logger.Logger, repo siterepo.GenerationRepo) *GenerationLog {
	return &GenerationLog{log: baseLog.With("service", "GenerationLog"), repo: repo}
}

func (g *GenerationLog) Record(ctx context.Context, rec pipeline.RunRecord) {
	fields := []interface{}{
		"slug", rec.Slug,
		"industry", rec.Industry,
		"components", rec.Components,
		"files", rec.Files,
		"generation_seconds", rec.Elapsed.Seconds(),
		"success", rec.Success,
		"build_state", rec.BuildState,
		"deployment_url", rec.DeploymentURL,
	}
	if rec.Success {
		g.log.Info("Generation recorded", fields...)
	} else {
		fields = append(fields, "stage", rec.Stage, "error_type", rec.ErrorType, "error", rec.Error, "build_logs", rec.BuildLogs)
		g.log.Warn("Generation recorded", fields...)
	}
	if g.repo == nil {
		return
	}

	features, _ := json.Marshal(rec.Features)
	row := &sites.SiteGeneration{
		ClientSlug:    rec.Slug,
		Industry:      rec.Industry,
		Features:      datatypes.JSON(features),
		Components:    rec.Components,
		Files:         rec.Files,
		Seconds:       rec.Elapsed.Seconds(),
		Success:       rec.Success,
		Stage:         rec.Stage,
		ErrorType:     rec.ErrorType,
		Error:         rec.Error,
		BuildState:    rec.BuildState,
		BuildLogs:     strings.Join(rec.BuildLogs, "\n"),
		DeploymentURL: rec.DeploymentURL,
	}
	if err := g.repo.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		g.log.Warn("Generation row not written", "slug", rec.Slug, "error", err)
	}
}
