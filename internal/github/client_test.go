package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/provider"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "token")
	client.APIURL = server.URL
	client.RawURL = server.URL
	return client
}

func TestReposListsOwnerReposSortedByUpdate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sort") != "updated" || q.Get("type") != "owner" || q.Get("per_page") != "8" {
			t.Errorf("query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("authorization header: %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"name": "fresh", "language": "Go", "stargazers_count": 12, "updated_at": "2026-08-01T00:00:00Z"},
			{"name": "stale", "language": "Python", "stargazers_count": 3, "updated_at": "2025-01-01T00:00:00Z"},
		})
	})

	repos, err := client.Repos(context.Background(), "jdoe", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repos) != 2 || repos[0].Name != "fresh" || repos[0].Stars != 12 {
		t.Errorf("repos: got %+v", repos)
	}
}

func TestRateLimitSurfacesAsRateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Repos(context.Background(), "jdoe", 8)
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
}

func TestHasReadme(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/jdoe/with/readme" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	has, err := client.HasReadme(context.Background(), "jdoe", "with")
	if err != nil || !has {
		t.Errorf("readme present: got (%v, %v)", has, err)
	}

	has, err = client.HasReadme(context.Background(), "jdoe", "without")
	if err != nil || has {
		t.Errorf("readme absent should be (false, nil): got (%v, %v)", has, err)
	}
}

func TestRawFile(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jdoe/demo/HEAD/README.md" {
			w.Write([]byte("# demo"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	content, err := client.RawFile(context.Background(), "jdoe", "demo", "README.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "# demo" {
		t.Errorf("content: got %q", content)
	}

	_, err = client.RawFile(context.Background(), "jdoe", "demo", "missing.txt")
	if !errors.Is(err, provider.ErrNoData) {
		t.Fatalf("missing file: got %v, want ErrNoData", err)
	}
}
