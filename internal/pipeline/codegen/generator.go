package codegen

import (
	"context"
	"strings"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/httpx"
	"github.com/yungbote/darx-site-generator/internal/platform/llm"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

// Generator turns requests into site files through the LLM.
type Generator struct {
	log      *logger.Logger
	llm      llm.Client
	required []string
}

func NewGenerator(log *logger.Logger, client llm.Client) *Generator {
	return &Generator{
		log:      log.With("service", "CodeGenerator"),
		llm:      client,
		required: sites.RequiredFiles,
	}
}

// GenerateSite returns an artifact holding every required file, or an
// IncompleteArtifact error. Trailing entries of a truncated reply are dropped
// and the rest is still checked against the required set.
func (g *Generator) GenerateSite(ctx context.Context, req sites.GenerationRequest) (sites.Artifact, error) {
	comp, err := g.llm.Complete(ctx, buildSystemPrompt(req), buildUserPrompt(req))
	if err != nil {
		return sites.Artifact{}, err
	}

	payload, err := ExtractJSON(comp.Text)
	if err != nil {
		return sites.Artifact{}, g.unparseable(comp, err)
	}
	files, salvaged, err := ParseFiles(payload)
	if err != nil {
		return sites.Artifact{}, g.unparseable(comp, err)
	}
	if salvaged {
		g.log.Warn("Reply was cut off; kept complete entries only",
			"project", req.ProjectName, "kept", len(files), "stop_reason", comp.StopReason)
	}

	art := sites.Artifact{Files: files, Components: sites.ComponentNames(files), Salvaged: salvaged}
	if missing := art.Missing(g.required); len(missing) > 0 {
		return sites.Artifact{}, apierr.New(apierr.KindIncompleteArtifact, apierr.UpstreamLLM,
			"generation incomplete, missing "+strings.Join(missing, ", ")+"; the reply likely hit the token limit, try simpler requirements", nil).
			WithDetail("missing_files", missing).
			WithDetail("generated_files", art.Paths())
	}
	g.log.Info("Site generated", "project", req.ProjectName, "files", len(files), "components", len(art.Components))
	return art, nil
}

func (g *Generator) unparseable(comp llm.Completion, err error) error {
	g.log.Warn("Unparseable generator reply",
		"head", httpx.Truncate(comp.Text, 500),
		"stop_reason", comp.StopReason,
		"error", err,
	)
	if comp.Truncated() {
		return apierr.New(apierr.KindIncompleteArtifact, apierr.UpstreamLLM, "reply truncated before any complete file", err)
	}
	return apierr.Rejected(apierr.UpstreamLLM, 0, "reply was not valid files JSON", err)
}

// EditFiles asks for targeted changes to files (path to current content) and
// returns the new content of each path the model chose to rewrite.
func (g *Generator) EditFiles(ctx context.Context, category string, changes map[string]any, files map[string]string) (map[string]string, error) {
	comp, err := g.llm.Complete(ctx, editSystemPrompt, buildEditPrompt(category, changes, files))
	if err != nil {
		return nil, err
	}
	out, err := ParseEdits(comp.Text)
	if err != nil {
		return nil, g.unparseable(comp, err)
	}
	return out, nil
}
