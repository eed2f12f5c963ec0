package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/observability"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

const (
	deployRef       = "main"
	defaultIndustry = "general"
)

// Deps are the collaborators of a generation run. Backups and Recorder may
// be nil.
type Deps struct {
	Generator   Generator
	Repo        RepoHost
	Deploy      DeployPlatform
	CMS         CMS
	Gate        ClientGate
	Credentials CredentialSource
	Backups     BackupSink
	Recorder    RunRecorder
	Lock        SlugLock
	Poller      *Poller
}

// GenerationResult is a deployed site.
type GenerationResult struct {
	ProjectName    string        `json:"project_name"`
	ProjectID      string        `json:"vercel_project_id"`
	DeploymentID   string        `json:"deployment_id"`
	StagingURL     string        `json:"staging_url"`
	RepoURL        string        `json:"github_repo"`
	CMSProjectID   string        `json:"builder_io_project"`
	CMSURL         string        `json:"builder_io_url"`
	Components     []string      `json:"components_registered"`
	Files          int           `json:"files_generated"`
	Elapsed        time.Duration `json:"-"`
	Warnings       []string      `json:"warnings"`
	RepoNote       string        `json:"repo_note,omitempty"`
	BackupLocation string        `json:"backup_location,omitempty"`
}

type Orchestrator struct {
	log  *logger.Logger
	deps Deps
	now  func() time.Time
}

func NewOrchestrator(log *logger.Logger, deps Deps) *Orchestrator {
	return &Orchestrator{
		log:  log.With("service", "GenerationOrchestrator"),
		deps: deps,
		now:  time.Now,
	}
}

// run carries what a single generation has produced so far.
type run struct {
	req        sites.GenerationRequest
	mode       sites.SpaceMode
	start      time.Time
	log        *logger.Logger
	artifact   sites.Artifact
	repo       sites.RepositoryRef
	project    sites.Project
	deployment sites.Deployment
	poll       PollResult
	creds      sites.CMSCredentials
	hasCreds   bool
	warnings   []string
}

func validateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return apierr.Validationf("project_name is required")
	}
	if !clients.ValidSlug(slug) {
		return apierr.Validationf("project_name must be a sanitized slug of %d to %d characters (got %q, expected %q)",
			clients.MinSlugLen, clients.MaxSlugLen, slug, clients.SanitizeSlug(slug)).
			WithDetail("suggested", clients.SanitizeSlug(slug))
	}
	return nil
}

// Generate takes a request from requirements to a deployed site. Steps up
// to and including deployment are hard failures returned as *RunError;
// later steps only add warnings. Nothing created is rolled back.
func (o *Orchestrator) Generate(ctx context.Context, req sites.GenerationRequest) (GenerationResult, error) {
	start := o.now()
	if err := validateSlug(req.ProjectName); err != nil {
		return GenerationResult{}, &RunError{Stage: StageValidate, Slug: req.ProjectName, Err: err}
	}
	if strings.TrimSpace(req.Requirements) == "" {
		return GenerationResult{}, &RunError{Stage: StageValidate, Slug: req.ProjectName,
			Err: apierr.Validationf("requirements is required")}
	}
	if strings.TrimSpace(req.Industry) == "" {
		req.Industry = defaultIndustry
	}
	if req.Mode == "" {
		req.Mode = sites.ModeDedicated
	}

	release, err := o.deps.Lock.TryLock(ctx, req.ProjectName)
	if err != nil {
		return GenerationResult{}, &RunError{Stage: StageLock, Slug: req.ProjectName, Err: err}
	}
	defer release()

	r := &run{
		req:   req,
		mode:  req.Mode.SpaceMode(),
		start: start,
		log:   o.log.With("slug", req.ProjectName),
	}
	ctx, span := observability.StartSpan(ctx, "pipeline.generate",
		attribute.String("darx.slug", req.ProjectName),
		attribute.String("darx.industry", req.Industry),
	)
	r.log.Info("Generation started", "industry", req.Industry, "features", req.Features, "space_mode", r.mode)

	steps := []struct {
		stage string
		fn    func(context.Context, *run) error
	}{
		{StageGate, o.admit},
		{StageGenerate, o.generate},
		{StageRepository, o.ensureRepo},
		{StagePush, o.push},
		{StageCredentials, o.resolveCredentials},
		{StageDeploy, o.deploy},
	}
	for _, s := range steps {
		if err := o.stage(ctx, r, s.stage, s.fn); err != nil {
			runErr := o.fail(ctx, r, s.stage, err)
			observability.EndSpan(span, runErr)
			return GenerationResult{}, runErr
		}
	}

	// Best-effort steps and the run record outlive a disconnected caller.
	res := o.finish(context.WithoutCancel(ctx), r)
	observability.EndSpan(span, nil)
	return res, nil
}

func (o *Orchestrator) stage(ctx context.Context, r *run, name string, fn func(context.Context, *run) error) error {
	ctx, span := observability.StartSpan(ctx, "pipeline."+name)
	t0 := o.now()
	err := fn(ctx, r)
	status := "ok"
	if err != nil {
		status = string(apierr.KindOf(err))
		observability.Current().IncUpstreamError(string(apierr.UpstreamOf(err)), status)
	}
	observability.Current().ObservePipelineStage("generate", name, status, o.now().Sub(t0))
	observability.EndSpan(span, err)
	return err
}

func (o *Orchestrator) admit(ctx context.Context, r *run) error {
	return o.deps.Gate.Admit(ctx, r.req.ProjectName)
}

func (o *Orchestrator) generate(ctx context.Context, r *run) error {
	art, err := o.deps.Generator.GenerateSite(ctx, r.req)
	if err != nil {
		return err
	}
	if missing := art.Missing(sites.RequiredFiles); len(missing) > 0 {
		return apierr.New(apierr.KindIncompleteArtifact, apierr.UpstreamLLM,
			"generation incomplete, missing "+strings.Join(missing, ", "), nil).
			WithDetail("missing_files", missing)
	}
	if len(art.Components) == 0 {
		art.Components = sites.ComponentNames(art.Files)
	}
	if art.Salvaged {
		r.warnings = append(r.warnings, "generator reply was truncated; trailing files were dropped")
	}
	r.artifact = art
	r.log.Info("Code generated", "files", len(art.Files), "components", len(art.Components))
	return nil
}

func (o *Orchestrator) ensureRepo(ctx context.Context, r *run) error {
	description := "Website for " + r.displayName()
	repo, err := o.deps.Repo.EnsureRepo(ctx, o.deps.Repo.Org(), r.req.ProjectName, description)
	if err != nil {
		return err
	}
	if repo.Existed {
		r.log.Info("Reusing existing repository", "repo", repo.FullName(), "note", repo.Note)
	}
	r.repo = repo
	return nil
}

func (o *Orchestrator) push(ctx context.Context, r *run) error {
	msg := fmt.Sprintf("Initial commit - Generated by DARX\n\nIndustry: %s\nComponents: %d",
		r.req.Industry, len(r.artifact.Components))
	sha, err := o.deps.Repo.PushFiles(ctx, r.repo.Org, r.repo.Name, deployRef, r.artifact.Files, msg)
	if err != nil {
		return err
	}
	r.repo.CommitSHA = sha
	r.log.Info("Files pushed", "repo", r.repo.FullName(), "commit", sha, "files", len(r.artifact.Files))
	return nil
}

func (o *Orchestrator) resolveCredentials(ctx context.Context, r *run) error {
	creds, ok, err := o.deps.Credentials.Resolve(ctx, r.req.ProjectName, r.mode)
	if err != nil {
		return err
	}
	if !ok && r.req.SpaceKey != "" {
		creds.PublicKey = r.req.SpaceKey
	}
	if !ok {
		r.warnings = append(r.warnings, fmt.Sprintf("no CMS credentials for %s mode; site deployed without visual editing", r.mode))
		observability.Current().IncWarning("credentials")
	}
	r.creds, r.hasCreds = creds, ok
	return nil
}

func (o *Orchestrator) deploy(ctx context.Context, r *run) error {
	d := o.deps.Deploy
	project, err := d.EnsureProject(ctx, r.req.ProjectName, r.repo.FullName())
	if err != nil {
		return err
	}
	if project.RepoID == 0 {
		project.RepoID = r.repo.ID
	}
	r.project = project

	vars := map[string]string{
		"NEXT_PUBLIC_BUILDER_API_KEY":    r.creds.PublicKey,
		"BUILDER_PRIVATE_KEY":            r.creds.PrivateKey,
		"BUILDER_SPACE_MODE":             string(r.mode),
		"NEXT_PUBLIC_BUILDER_SPACE_MODE": string(r.mode),
		"NEXT_PUBLIC_CLIENT_SLUG":        r.req.ProjectName,
	}
	if err := d.SetEnvVars(ctx, project.ID, vars); err != nil {
		return err
	}

	dep, err := d.TriggerDeployment(ctx, project, r.repo.FullName(), deployRef)
	if err != nil {
		return err
	}
	r.deployment = dep
	r.log.Info("Deployment triggered", "project_id", project.ID, "deployment_id", dep.ID)

	r.poll = o.deps.Poller.Wait(ctx, dep.ID)
	if r.poll.URL != "" {
		r.deployment.URL = r.poll.URL
	}
	r.deployment.State = r.poll.State
	if !r.poll.Success {
		return r.poll.Err
	}
	return nil
}

// finish runs the best-effort steps and builds the success result.
func (o *Orchestrator) finish(ctx context.Context, r *run) GenerationResult {
	stagingURL := o.deps.Deploy.StagingURL(r.req.ProjectName)
	warn := func(step string, err error) {
		r.log.Warn("Best-effort step failed", "step", step, "error", err)
		r.warnings = append(r.warnings, fmt.Sprintf("%s: %v", step, err))
		observability.Current().IncWarning(step)
	}

	if r.hasCreds {
		if err := o.deps.CMS.ConfigurePreview(ctx, r.creds.PublicKey, r.creds.PrivateKey, r.mode.PreviewModel(), stagingURL); err != nil {
			warn("cms_preview", err)
		}
	}

	space, err := o.space(ctx, r)
	if err != nil {
		warn("cms_space", err)
	}

	res := GenerationResult{
		ProjectName:  r.req.ProjectName,
		ProjectID:    r.project.ID,
		DeploymentID: r.deployment.ID,
		StagingURL:   stagingURL,
		RepoURL:      r.repo.URL,
		CMSProjectID: space.ID,
		CMSURL:       space.URL,
		Components:   r.artifact.Components,
		Files:        len(r.artifact.Files),
		RepoNote:     r.repo.Note,
	}
	if res.StagingURL == "" {
		res.StagingURL = r.deployment.URL
	}

	if o.deps.Backups != nil {
		loc, err := o.deps.Backups.Store(ctx, r.req.ProjectName, r.artifact.Files, map[string]any{
			"project_name":   r.req.ProjectName,
			"industry":       r.req.Industry,
			"features":       r.req.Features,
			"components":     r.artifact.Components,
			"generated_at":   o.now().UTC().Format(time.RFC3339),
			"deployment_url": res.StagingURL,
			"github_repo":    r.repo.URL,
			"commit_sha":     r.repo.CommitSHA,
		})
		if err != nil {
			warn("backup", err)
		}
		res.BackupLocation = loc
	}

	res.Elapsed = o.now().Sub(r.start)
	res.Warnings = r.warnings
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	o.record(ctx, r, RunRecord{
		Success:       true,
		Elapsed:       res.Elapsed,
		BuildState:    string(r.deployment.State),
		DeploymentURL: res.StagingURL,
	})
	r.log.Info("Generation finished", "elapsed", res.Elapsed, "staging_url", res.StagingURL, "warnings", len(res.Warnings))
	return res
}

// space picks the CMS space: a supplied key, a new space when the org key
// allows it, else the slug.
func (o *Orchestrator) space(ctx context.Context, r *run) (sites.CMSSpace, error) {
	fallback := sites.CMSSpace{ID: r.req.ProjectName}
	if key := strings.TrimSpace(r.req.SpaceKey); key != "" {
		if err := o.deps.CMS.ValidatePublicKey(ctx, key); err != nil {
			return fallback, err
		}
		return sites.CMSSpace{ID: key, PublicKey: key}, nil
	}
	if r.mode == sites.SpaceShared || !o.deps.CMS.CanCreateSpaces() {
		return fallback, nil
	}
	space, err := o.deps.CMS.CreateSpace(ctx, r.displayName(), r.project.ID)
	if err != nil {
		return fallback, err
	}
	return space, nil
}

func (o *Orchestrator) fail(ctx context.Context, r *run, stage string, err error) *RunError {
	runErr := &RunError{
		Stage:         stage,
		Slug:          r.req.ProjectName,
		RepoURL:       r.repo.URL,
		DeploymentID:  r.deployment.ID,
		DeploymentURL: r.deployment.URL,
		Logs:          r.poll.Logs,
		Elapsed:       o.now().Sub(r.start),
		Err:           err,
	}
	r.log.Error("Generation failed",
		"stage", stage,
		"error_type", apierr.KindOf(err),
		"upstream", apierr.UpstreamOf(err),
		"repo_url", runErr.RepoURL,
		"deployment_id", runErr.DeploymentID,
		"error", err,
	)
	o.record(context.WithoutCancel(ctx), r, RunRecord{
		Success:       false,
		Elapsed:       runErr.Elapsed,
		Stage:         stage,
		ErrorType:     string(apierr.KindOf(err)),
		Error:         err.Error(),
		BuildState:    string(r.deployment.State),
		BuildLogs:     r.poll.Logs,
		DeploymentURL: r.deployment.URL,
	})
	return runErr
}

func (o *Orchestrator) record(ctx context.Context, r *run, rec RunRecord) {
	observability.Current().ObserveGeneration(rec.Success, rec.ErrorType, rec.Elapsed)
	if o.deps.Recorder == nil {
		return
	}
	rec.Slug = r.req.ProjectName
	rec.Industry = r.req.Industry
	rec.Features = r.req.Features
	rec.Components = len(r.artifact.Components)
	rec.Files = len(r.artifact.Files)
	o.deps.Recorder.Record(ctx, rec)
}

// displayName is the human name used for the repo description and CMS space.
func (r *run) displayName() string {
	if name := r.req.ClientString("client_name"); name != "" {
		return name
	}
	parts := strings.FieldsFunc(r.req.ProjectName, func(c rune) bool { return c == '-' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
