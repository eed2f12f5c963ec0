package sites

import (
	"path"
	"strings"
)

// FileEntry is one generated file, path relative to the repository root.
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Artifact is a complete generated site.
type Artifact struct {
	Files      []FileEntry `json:"files"`
	Components []string    `json:"components"`
	// Salvaged is set when trailing entries of a truncated reply were dropped.
	Salvaged bool `json:"salvaged,omitempty"`
}

// RequiredFiles must all be present for an artifact to be accepted.
var RequiredFiles = []string{"app/page.tsx", "app/layout.tsx", "package.json", "vercel.json"}

func (a Artifact) Paths() []string {
	out := make([]string, 0, len(a.Files))
	for _, f := range a.Files {
		out = append(out, f.Path)
	}
	return out
}

// Missing returns the required paths absent from the artifact, in order.
func (a Artifact) Missing(required []string) []string {
	have := make(map[string]bool, len(a.Files))
	for _, f := range a.Files {
		have[f.Path] = true
	}
	var missing []string
	for _, p := range required {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	return missing
}

// ComponentNames lists components/*.tsx basenames in file order.
func ComponentNames(files []FileEntry) []string {
	out := []string{}
	for _, f := range files {
		if strings.HasPrefix(f.Path, "components/") && strings.HasSuffix(f.Path, ".tsx") {
			out = append(out, strings.TrimSuffix(path.Base(f.Path), ".tsx"))
		}
	}
	return out
}
