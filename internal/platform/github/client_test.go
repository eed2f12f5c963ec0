package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/darx-site-generator/internal/domain/sites"
	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
	"github.com/yungbote/darx-site-generator/internal/platform/logger"
)

// fakeGitHub is a minimal in-memory stand-in for the REST endpoints the client uses.
type fakeGitHub struct {
	mu        sync.Mutex
	repos     map[string]bool
	calls     []string
	failTrees bool
	fileSHA   string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("authorization: want=Bearer test-token got=%q", r.Header.Get("Authorization"))
		}
		p := r.URL.Path
		switch {
		case r.Method == http.MethodPost && p == "/orgs/darx-sites/repos":
			var body struct {
				Name     string `json:"name"`
				AutoInit bool   `json:"auto_init"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if !body.AutoInit {
				t.Errorf("auto_init: want=true")
			}
			if f.repos[body.Name] {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"message":"Repository creation failed.","errors":[{"message":"name already exists on this account"}]}`))
				return
			}
			f.repos[body.Name] = true
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":7,"name":"` + body.Name + `","html_url":"https://github.com/darx-sites/` + body.Name + `","default_branch":"main"}`))
		case r.Method == http.MethodGet && p == "/repos/darx-sites/acme":
			_, _ = w.Write([]byte(`{"id":7,"name":"acme","html_url":"https://github.com/darx-sites/acme","default_branch":"main"}`))
		case r.Method == http.MethodGet && p == "/repos/darx-sites/acme/git/ref/heads/main":
			_, _ = w.Write([]byte(`{"object":{"sha":"base"}}`))
		case r.Method == http.MethodGet && p == "/repos/darx-sites/acme/git/commits/base":
			_, _ = w.Write([]byte(`{"tree":{"sha":"basetree"}}`))
		case r.Method == http.MethodPost && p == "/repos/darx-sites/acme/git/blobs":
			_, _ = w.Write([]byte(`{"sha":"blob"}`))
		case r.Method == http.MethodPost && p == "/repos/darx-sites/acme/git/trees":
			if f.failTrees {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var body struct {
				BaseTree string      `json:"base_tree"`
				Tree     []treeEntry `json:"tree"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.BaseTree != "basetree" || len(body.Tree) != 2 {
				t.Errorf("tree body: got=%+v", body)
			}
			_, _ = w.Write([]byte(`{"sha":"newtree"}`))
		case r.Method == http.MethodPost && p == "/repos/darx-sites/acme/git/commits":
			_, _ = w.Write([]byte(`{"sha":"newcommit"}`))
		case r.Method == http.MethodPatch && p == "/repos/darx-sites/acme/git/refs/heads/main":
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet && p == "/repos/darx-sites/acme/contents/app/page.tsx":
			_, _ = w.Write([]byte(`{"path":"app/page.tsx","sha":"` + f.fileSHA + `","encoding":"base64","content":"aGVs\nbG8="}`))
		case r.Method == http.MethodPut && p == "/repos/darx-sites/acme/contents/app/page.tsx":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["sha"] != f.fileSHA {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"message":"app/page.tsx does not match ` + body["sha"] + `"}`))
				return
			}
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	})
}

func newFake(t *testing.T) (*fakeGitHub, *Client) {
	t.Helper()
	f := &fakeGitHub{repos: map[string]bool{}, fileSHA: "v1"}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), Config{Token: "test-token", BaseURL: srv.URL, Org: "darx-sites"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return f, c
}

func TestEnsureRepoIsIdempotent(t *testing.T) {
	_, c := newFake(t)
	ctx := context.Background()

	first, err := c.EnsureRepo(ctx, "darx-sites", "acme", "Website for acme")
	if err != nil {
		t.Fatalf("first EnsureRepo: %v", err)
	}
	if first.Existed {
		t.Fatalf("first EnsureRepo: want Existed=false")
	}
	second, err := c.EnsureRepo(ctx, "darx-sites", "acme", "Website for acme")
	if err != nil {
		t.Fatalf("second EnsureRepo: %v", err)
	}
	if !second.Existed || second.Note == "" {
		t.Fatalf("second EnsureRepo: want Existed with note got=%+v", second)
	}
	if second.URL != "https://github.com/darx-sites/acme" {
		t.Fatalf("url: want=%q got=%q", "https://github.com/darx-sites/acme", second.URL)
	}
}

func TestPushFilesMovesRefLast(t *testing.T) {
	f, c := newFake(t)
	files := []sites.FileEntry{{Path: "app/page.tsx", Content: "x"}, {Path: "package.json", Content: "{}"}}

	sha, err := c.PushFiles(context.Background(), "darx-sites", "acme", "main", files, "Initial commit")
	if err != nil {
		t.Fatalf("PushFiles: %v", err)
	}
	if sha != "newcommit" {
		t.Fatalf("commit sha: want=newcommit got=%q", sha)
	}
	if last := f.calls[len(f.calls)-1]; last != "PATCH /repos/darx-sites/acme/git/refs/heads/main" {
		t.Fatalf("last call: want ref update got=%q", last)
	}
}

func TestPushFilesFailureLeavesRefUntouched(t *testing.T) {
	f, c := newFake(t)
	f.failTrees = true
	files := []sites.FileEntry{{Path: "app/page.tsx", Content: "x"}, {Path: "package.json", Content: "{}"}}

	_, err := c.PushFiles(context.Background(), "darx-sites", "acme", "main", files, "Initial commit")
	if apierr.KindOf(err) != apierr.KindUpstreamUnavailable {
		t.Fatalf("kind: want=%q got=%q (%v)", apierr.KindUpstreamUnavailable, apierr.KindOf(err), err)
	}
	for _, call := range f.calls {
		if strings.HasPrefix(call, "PATCH ") {
			t.Fatalf("ref was updated after a failed tree: %v", f.calls)
		}
	}
}

func TestGetFileAndStaleUpdate(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()

	file, err := c.GetFile(ctx, "darx-sites", "acme", "app/page.tsx", "main")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if file.Content != "hello" || file.SHA != "v1" {
		t.Fatalf("GetFile: got=%+v", file)
	}

	f.fileSHA = "v2"
	file.Content = "changed"
	err = c.UpdateFile(ctx, "darx-sites", "acme", "main", file, "edit")
	if apierr.KindOf(err) != apierr.KindUpstreamConflict {
		t.Fatalf("stale update kind: want=%q got=%q", apierr.KindUpstreamConflict, apierr.KindOf(err))
	}
}

func TestInstallationTokenIsCachedAndSigned(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	var mints int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/app/installations/99/access_tokens":
			mints++
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
				jwt.WithValidMethods([]string{"RS256"}))
			if err != nil || !tok.Valid {
				t.Errorf("app jwt invalid: %v", err)
				return
			}
			if iss, _ := tok.Claims.GetIssuer(); iss != "12345" {
				t.Errorf("iss: want=12345 got=%q", iss)
			}
			exp := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			_, _ = w.Write([]byte(`{"token":"ghs_install","expires_at":"` + exp + `"}`))
		case "/repos/darx-sites/acme":
			if r.Header.Get("Authorization") != "Bearer ghs_install" {
				t.Errorf("authorization: want installation token got=%q", r.Header.Get("Authorization"))
			}
			_, _ = w.Write([]byte(`{"id":7,"name":"acme","html_url":"u","default_branch":"main"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(logger.Nop(), Config{
		AppID:          "12345",
		InstallationID: "99",
		PrivateKey:     string(keyPEM),
		BaseURL:        srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.GetRepo(context.Background(), "darx-sites", "acme"); err != nil {
			t.Fatalf("GetRepo: %v", err)
		}
	}
	if mints != 1 {
		t.Fatalf("token mints: want=1 got=%d", mints)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(logger.Nop(), Config{})
	if apierr.KindOf(err) != apierr.KindUpstreamUnavailable {
		t.Fatalf("kind: want=%q got=%v", apierr.KindUpstreamUnavailable, err)
	}
}
