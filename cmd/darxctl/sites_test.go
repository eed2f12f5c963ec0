package main

import (
	"context"
	"errors"
	"testing"
)

type fakeHost struct {
	repoErr, projErr error
	deletedRepo      string
	deletedProject   string
}

func (f *fakeHost) Org() string { return "darx-sites" }

func (f *fakeHost) DeleteRepo(_ context.Context, org, name string) error {
	f.deletedRepo = org + "/" + name
	return f.repoErr
}

func (f *fakeHost) DeleteProject(_ context.Context, name string) error {
	f.deletedProject = name
	return f.projErr
}

func TestTeardownRequiresConfirmation(t *testing.T) {
	f := &fakeHost{}
	if _, err := teardown(context.Background(), f, f, "acme-corp", false); !errors.Is(err, errNotConfirmed) {
		t.Fatalf("unconfirmed: want errNotConfirmed got=%v", err)
	}
	if f.deletedRepo != "" || f.deletedProject != "" {
		t.Fatalf("unconfirmed: nothing should be deleted, got repo=%q project=%q", f.deletedRepo, f.deletedProject)
	}
}

func TestTeardownAttemptsBothDeletions(t *testing.T) {
	f := &fakeHost{repoErr: errors.New("github: forbidden")}
	res, err := teardown(context.Background(), f, f, "acme-corp", true)
	if err == nil {
		t.Fatalf("want joined error")
	}
	if f.deletedRepo != "darx-sites/acme-corp" || f.deletedProject != "acme-corp" {
		t.Fatalf("calls: repo=%q project=%q", f.deletedRepo, f.deletedProject)
	}
	if res.RepoDeleted || !res.ProjectDeleted {
		t.Fatalf("result: got=%+v", res)
	}
}
