package services

import (
	"context"
	"errors"
	"testing"

	clientrepo "github.com/yungbote/darx-site-generator/internal/data/repos/clients"
	siterepo "github.com/yungbote/darx-site-generator/internal/data/repos/sites"
	"github.com/yungbote/darx-site-generator/internal/data/repos/testutil"
	types "github.com/yungbote/darx-site-generator/internal/domain/clients"
	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/pipeline"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/dbctx"
)

func TestClientGate(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	gate := NewClientGate(testutil.Logger(t), clientrepo.NewClientRepo(db, testutil.Logger(t)))

	active := testutil.Slug("active")
	testutil.SeedClient(t, ctx, db, active, types.StatusActive)
	if err := gate.Admit(ctx, active); err != nil {
		t.Fatalf("active: %v", err)
	}

	pending := testutil.Slug("pending")
	testutil.SeedClient(t, ctx, db, pending, types.StatusPendingProvisioning)
	err := gate.Admit(ctx, pending)
	if !errors.Is(err, apierr.Validation) {
		t.Fatalf("pending: want validation got=%v", err)
	}
	e, _ := apierr.As(err)
	if e.Details["current_status"] != "pending_provisioning" || e.Details["recommendation"] == "" {
		t.Fatalf("pending details: got=%v", e.Details)
	}

	if err := gate.Admit(ctx, testutil.Slug("ghost")); !errors.Is(err, apierr.Validation) {
		t.Fatalf("missing client: want validation got=%v", err)
	}
}

func TestCredentialResolver(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	s := testSealer(t)
	pub, _ := s.SealString("pub-shared-0123456789")
	priv, _ := s.SealString("bpk-shared-0123456789")
	shared := testutil.Slug("shared")
	testutil.SeedOnboarding(t, ctx, db, shared, pub, priv)

	dedicated := sites.CMSCredentials{PublicKey: "pub-dedicated", PrivateKey: "bpk-dedicated", Source: "config"}
	r := NewCredentialResolver(testutil.Logger(t), clientrepo.NewOnboardingRepo(db, testutil.Logger(t)), s, dedicated)

	creds, ok, err := r.Resolve(ctx, shared, sites.SpaceShared)
	if err != nil || !ok || creds.PublicKey != "pub-shared-0123456789" || creds.PrivateKey != "bpk-shared-0123456789" {
		t.Fatalf("shared: got=%+v ok=%v err=%v", creds, ok, err)
	}

	creds, ok, err = r.Resolve(ctx, shared, sites.SpaceDedicated)
	if err != nil || !ok || creds.PublicKey != "pub-dedicated" {
		t.Fatalf("dedicated: got=%+v ok=%v err=%v", creds, ok, err)
	}

	if _, ok, err := r.Resolve(ctx, testutil.Slug("none"), sites.SpaceShared); err != nil || ok {
		t.Fatalf("no onboarding: want ok=false err=nil got ok=%v err=%v", ok, err)
	}

	noSealer := NewCredentialResolver(testutil.Logger(t), clientrepo.NewOnboardingRepo(db, testutil.Logger(t)), nil, sites.CMSCredentials{})
	if _, ok, err := noSealer.Resolve(ctx, shared, sites.SpaceShared); err != nil || ok {
		t.Fatalf("no sealer: want ok=false err=nil got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := noSealer.Resolve(ctx, shared, sites.SpaceDedicated); ok {
		t.Fatalf("empty dedicated config: want ok=false")
	}
}

func TestGenerationLogWritesRow(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := siterepo.NewGenerationRepo(db, testutil.Logger(t))
	gl := NewGenerationLog(testutil.Logger(t), repo)
	slug := testutil.Slug("log")

	gl.Record(ctx, pipeline.RunRecord{
		Slug:       slug,
		Industry:   "saas",
		Features:   []string{"stripe-checkout"},
		Success:    false,
		Stage:      pipeline.StageDeploy,
		ErrorType:  string(apierr.KindUpstreamRejected),
		Error:      "vercel: deployment failed",
		BuildState: "ERROR",
		BuildLogs:  []string{"line 1", "line 2"},
	})

	rows, err := repo.ListRecent(dbctx.Context{Ctx: ctx}, slug, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: want=1 got=%d", len(rows))
	}
	if rows[0].Success || rows[0].BuildLogs != "line 1\nline 2" || rows[0].Stage != pipeline.StageDeploy {
		t.Fatalf("row: got=%+v", rows[0])
	}
}
