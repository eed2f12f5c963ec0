package sites

import (
	"reflect"
	"testing"
)

func TestArtifactMissing(t *testing.T) {
	a := Artifact{Files: []FileEntry{{Path: "app/page.tsx"}, {Path: "package.json"}}}
	got := a.Missing(RequiredFiles)
	want := []string{"app/layout.tsx", "vercel.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing: want=%v got=%v", want, got)
	}
}

func TestComponentNames(t *testing.T) {
	files := []FileEntry{
		{Path: "components/Hero.tsx"},
		{Path: "components/ui/Button.tsx"},
		{Path: "components/util.ts"},
		{Path: "app/page.tsx"},
	}
	got := ComponentNames(files)
	want := []string{"Hero", "Button"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ComponentNames: want=%v got=%v", want, got)
	}
}

func TestParseDeployState(t *testing.T) {
	cases := map[string]DeployState{
		"QUEUED":       DeployPending,
		"INITIALIZING": DeployPending,
		"BUILDING":     DeployBuilding,
		"READY":        DeployReady,
		"ERROR":        DeployError,
		"CANCELED":     DeployCanceled,
	}
	for in, want := range cases {
		if got := ParseDeployState(in); got != want {
			t.Fatalf("ParseDeployState(%q): want=%q got=%q", in, want, got)
		}
	}
	if DeployBuilding.Terminal() || !DeployCanceled.Terminal() {
		t.Fatalf("Terminal: BUILDING must be non-terminal and CANCELED terminal")
	}
}
