package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/ctxutil"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
	"github.com/yungbote/darx-site-generator/internal/services"
)

func do(t *testing.T, r *gin.Engine, method, path, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

type stubSites struct {
	res     pipeline.GenerationResult
	err     error
	edit    pipeline.EditResult
	editErr error
	gotReq  sites.GenerationRequest
}

func (s *stubSites) Generate(_ context.Context, req sites.GenerationRequest) (pipeline.GenerationResult, error) {
	s.gotReq = req
	return s.res, s.err
}

func (s *stubSites) Edit(context.Context, sites.EditRequest) (pipeline.EditResult, error) {
	return s.edit, s.editErr
}

func siteRouter(s *stubSites) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSiteHandler(logger.Nop(), s, s)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.POST("/", h.Generate)
	r.POST("/generate", h.Generate)
	r.POST("/edit", h.Edit)
	return r
}

func TestGenerateSuccessBody(t *testing.T) {
	s := &stubSites{res: pipeline.GenerationResult{
		ProjectName: "acme-corp",
		StagingURL:  "https://acme-corp.vercel.app",
		Components:  []string{"Hero"},
		Files:       5,
		Elapsed:     1234 * time.Millisecond,
		Warnings:    []string{},
	}}
	r := siteRouter(s)

	rec, body := do(t, r, http.MethodPost, "/", "application/json", `{"project_name":"acme-corp","requirements":"landing page","features":["spline-3d"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["staging_url"] != "https://acme-corp.vercel.app" || body["generation_time"] != 1.23 {
		t.Fatalf("body: got=%v", body)
	}
	if s.gotReq.ProjectName != "acme-corp" || len(s.gotReq.Features) != 1 {
		t.Fatalf("request: got=%+v", s.gotReq)
	}
}

func TestGenerateFailureBody(t *testing.T) {
	runErr := &pipeline.RunError{
		Stage:        pipeline.StageDeploy,
		Slug:         "acme-corp",
		RepoURL:      "https://github.com/darx-sites/acme-corp",
		DeploymentID: "dpl_1",
		Logs:         []string{"Type error in app/page.tsx"},
		Elapsed:      90 * time.Second,
		Err:          apierr.Rejected(apierr.UpstreamVercel, 0, "deployment failed", nil),
	}
	r := siteRouter(&stubSites{err: runErr})

	rec, body := do(t, r, http.MethodPost, "/generate", "application/json", `{"project_name":"acme-corp","requirements":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", rec.Code)
	}
	if body["error_type"] != string(apierr.KindUpstreamRejected) || body["upstream"] != "vercel" || body["stage"] != "deploy" {
		t.Fatalf("tags: got=%v", body)
	}
	if body["github_repo"] != runErr.RepoURL || body["deployment_id"] != "dpl_1" {
		t.Fatalf("partial state: got=%v", body)
	}
	help, _ := body["help"].(map[string]any)
	if steps, _ := help["next_steps"].([]any); len(steps) == 0 {
		t.Fatalf("help: got=%v", body["help"])
	}
	if logs, _ := body["build_logs"].([]any); len(logs) != 1 {
		t.Fatalf("build_logs: got=%v", body["build_logs"])
	}
}

func TestGenerateStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apierr.Validationf("project_name is required"), http.StatusBadRequest},
		{&pipeline.RunError{Stage: pipeline.StageLock, Err: apierr.Conflict(apierr.UpstreamNone, "generation already in progress", nil)}, http.StatusConflict},
		{&pipeline.RunError{Stage: pipeline.StageDeploy, Err: apierr.TimedOut(apierr.UpstreamVercel, "deployment did not finish", nil)}, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		rec, _ := do(t, siteRouter(&stubSites{err: tc.err}), http.MethodPost, "/generate", "application/json", `{}`)
		if rec.Code != tc.want {
			t.Fatalf("%v: want=%d got=%d", tc.err, tc.want, rec.Code)
		}
	}

	rec, body := do(t, siteRouter(&stubSites{}), http.MethodPost, "/generate", "application/json", `{not json`)
	if rec.Code != http.StatusBadRequest || body["error_type"] != string(apierr.KindValidation) {
		t.Fatalf("malformed body: status=%d body=%v", rec.Code, body)
	}
}

func TestEditResponses(t *testing.T) {
	s := &stubSites{edit: pipeline.EditResult{
		Updated:  []string{"app/page.tsx"},
		Failed:   []pipeline.FileFailure{{Path: "app/globals.css", Reason: "sha mismatch"}},
		Category: "color_palette",
		Elapsed:  2 * time.Second,
		Partial:  true,
	}}
	rec, body := do(t, siteRouter(s), http.MethodPost, "/edit", "application/json", `{"project_name":"acme-corp","edit_type":"color_palette"}`)
	if rec.Code != http.StatusOK || body["partial"] != true || body["edit_time"] != 2.0 {
		t.Fatalf("partial edit: status=%d body=%v", rec.Code, body)
	}

	s = &stubSites{editErr: apierr.NotFoundf(apierr.UpstreamGitHub, "app/page.tsx not found")}
	rec, _ = do(t, siteRouter(s), http.MethodPost, "/edit", "application/json", `{"project_name":"acme-corp","edit_type":"content"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("edit not found: want=404 got=%d", rec.Code)
	}
}

type stubRegistry struct {
	status int
	body   map[string]any
	err    error
	method string
	path   string
	query  url.Values
	sent   any
}

func (s *stubRegistry) Call(_ context.Context, method, path string, query url.Values, body any) (int, map[string]any, error) {
	s.method, s.path, s.query, s.sent = method, path, query, body
	return s.status, s.body, s.err
}

func registryRouter(reg *stubRegistry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewRegistryHandler(logger.Nop(), reg)
	r := gin.New()
	r.GET("/sites", h.List)
	r.GET("/sites/:slug", h.Get)
	r.DELETE("/sites/:slug", h.Delete)
	r.POST("/sites/:slug/recover", h.Recover)
	r.GET("/sites/:slug/health", h.Health)
	r.POST("/sites/:slug/health/check", h.CheckHealth)
	return r
}

func TestRegistryProxy(t *testing.T) {
	reg := &stubRegistry{status: 200, body: map[string]any{"success": true, "sites": []any{}}}
	rec, _ := do(t, registryRouter(reg), http.MethodGet, "/sites?status=active&limit=10&bogus=1", "", "")
	if rec.Code != http.StatusOK || reg.path != "/api/v1/sites" || reg.query.Get("status") != "active" || reg.query.Get("limit") != "10" || reg.query.Has("bogus") {
		t.Fatalf("list: status=%d path=%q query=%v", rec.Code, reg.path, reg.query)
	}

	reg = &stubRegistry{status: 404, body: map[string]any{"success": false, "error": "Site Not Found"}}
	if rec, _ := do(t, registryRouter(reg), http.MethodGet, "/sites/acme", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: want=404 got=%d", rec.Code)
	}
	if rec, _ := do(t, registryRouter(reg), http.MethodGet, "/sites/acme/health", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("health missing: want=404 got=%d", rec.Code)
	}
	if rec, _ := do(t, registryRouter(reg), http.MethodPost, "/sites/acme/health/check", "", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("check missing: want=500 got=%d", rec.Code)
	}

	reg = &stubRegistry{body: map[string]any{"success": true}}
	rec, body := do(t, registryRouter(reg), http.MethodDelete, "/sites/acme", "application/json", `{"reason":"x"}`)
	if rec.Code != http.StatusBadRequest || body["error"] != "deleted_by is required" || reg.path != "" {
		t.Fatalf("delete without deleted_by: status=%d body=%v called=%q", rec.Code, body, reg.path)
	}
	rec, _ = do(t, registryRouter(reg), http.MethodDelete, "/sites/acme", "application/json", `{"deleted_by":"ops@darx.example"}`)
	if rec.Code != http.StatusOK || reg.method != http.MethodDelete || reg.path != "/api/v1/sites/acme" {
		t.Fatalf("delete: status=%d method=%s path=%s", rec.Code, reg.method, reg.path)
	}
	if rec, _ := do(t, registryRouter(reg), http.MethodPost, "/sites/acme/recover", "application/json", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("recover without recovered_by: want=400 got=%d", rec.Code)
	}

	reg = &stubRegistry{err: apierr.Unavailable(apierr.UpstreamRegistry, "GET /api/v1/sites", errors.New("connection refused"))}
	rec, body = do(t, registryRouter(reg), http.MethodGet, "/sites", "", "")
	if rec.Code != http.StatusInternalServerError || !strings.HasPrefix(body["error"].(string), "Registry API error:") {
		t.Fatalf("transport failure: status=%d body=%v", rec.Code, body)
	}
}

type stubOnboarding struct {
	gotSlug  string
	gotBy    string
	gotForm  services.OnboardingForm
	issueErr error
}

func (s *stubOnboarding) IssueLink(_ context.Context, raw, by string) (services.OnboardingLink, error) {
	s.gotSlug, s.gotBy = raw, by
	if s.issueErr != nil {
		return services.OnboardingLink{}, s.issueErr
	}
	return services.OnboardingLink{URL: "https://darx.example/onboard/tok", ClientSlug: "acme-corp", ExpiresInHours: 24}, nil
}

func (s *stubOnboarding) Inspect(context.Context, string) (*types.OnboardingToken, error) {
	return &types.OnboardingToken{ClientSlug: "acme-corp", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubOnboarding) Submit(_ context.Context, _ string, form services.OnboardingForm, by string) (*types.Client, error) {
	s.gotForm, s.gotBy = form, by
	return &types.Client{Slug: form.ClientSlug, Status: string(types.StatusPendingProvisioning)}, nil
}

func onboardingRouter(s *stubOnboarding) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewOnboardingHandler(logger.Nop(), s)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithOperator(c.Request.Context(), &ctxutil.Operator{Email: "ops@darx.example"}))
	})
	r.POST("/onboard/generate-link", h.GenerateLink)
	r.GET("/onboard/:token", h.Inspect)
	r.POST("/onboard/:token", h.Submit)
	return r
}

func TestOnboardingHandlers(t *testing.T) {
	s := &stubOnboarding{}
	r := onboardingRouter(s)

	rec, body := do(t, r, http.MethodPost, "/onboard/generate-link", "application/json", `{"client_slug":"Acme Corp"}`)
	if rec.Code != http.StatusOK || body["expires_in_hours"] != 24.0 || s.gotSlug != "Acme Corp" || s.gotBy != "ops@darx.example" {
		t.Fatalf("generate-link: status=%d body=%v slug=%q by=%q", rec.Code, body, s.gotSlug, s.gotBy)
	}

	if rec, _ := do(t, r, http.MethodPost, "/onboard/generate-link", "application/json", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("generate-link without slug: want=400 got=%d", rec.Code)
	}

	s.issueErr = apierr.Conflict(apierr.UpstreamNone, "client slug acme-corp is already in use", nil).WithCode("slug_taken")
	if rec, _ := do(t, r, http.MethodPost, "/onboard/generate-link", "application/json", `{"client_slug":"acme-corp"}`); rec.Code != http.StatusConflict {
		t.Fatalf("generate-link taken: want=409 got=%d", rec.Code)
	}

	form := url.Values{"client_name": {"Acme"}, "client_slug": {"acme-corp"}, "tier": {"professional"}}
	rec, body = do(t, r, http.MethodPost, "/onboard/tok", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusCreated || body["client_slug"] != "acme-corp" || s.gotForm.Tier != "professional" {
		t.Fatalf("form submit: status=%d body=%v form=%+v", rec.Code, body, s.gotForm)
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{"client_name": "Acme", "client_slug": "acme-corp", "metadata": map[string]any{"source": "referral"}})
	rec, _ = do(t, r, http.MethodPost, "/onboard/tok", "application/json", buf.String())
	if rec.Code != http.StatusCreated || s.gotForm.Metadata["source"] != "referral" {
		t.Fatalf("json submit: status=%d form=%+v", rec.Code, s.gotForm)
	}
}

func TestGenerateLinkFromChatIntegration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &stubOnboarding{}
	h := NewOnboardingHandler(logger.Nop(), s)
	r := gin.New()
	r.POST("/onboard/generate-link", h.GenerateLink)

	rec, body := do(t, r, http.MethodPost, "/onboard/generate-link", "application/json", `{"client_slug":"acme-corp","requester_id":"U12345678"}`)
	if rec.Code != http.StatusOK || body["onboarding_url"] != "https://darx.example/onboard/tok" {
		t.Fatalf("generate-link: status=%d body=%v", rec.Code, body)
	}
	if s.gotBy != "slack:U12345678" {
		t.Fatalf("requested by: want=%q got=%q", "slack:U12345678", s.gotBy)
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler()
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/healthcheck", h.HealthCheck)

	rec, body := do(t, r, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" || body["service"] != "darx-site-generator" {
		t.Fatalf("health: status=%d body=%v", rec.Code, body)
	}
	rec, _ = do(t, r, http.MethodGet, "/healthcheck", "", "")
	if rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%q", rec.Body.String())
	}
}
