package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-github/v39/github"

	"github.com/reillywatson/dorastats/internal/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{Token: "test-token", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestClient_ListMergedPullRequests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/org/api/pulls" {
			t.Errorf("Expected path /repos/org/api/pulls, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("state"); got != "closed" {
			t.Errorf("Expected state=closed, got %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token, got '%s'", got)
		}
		fmt.Fprint(w, `[
			{"number": 1, "merged_at": "2025-06-10T00:00:00Z", "merge_commit_sha": "aaa"},
			{"number": 2, "merged_at": null},
			{"number": 3, "merged_at": "2025-06-12T00:00:00Z", "merge_commit_sha": "ccc"},
			{"number": 4, "merged_at": "2025-06-11T00:00:00Z", "merge_commit_sha": "ddd"}
		]`)
	})

	prs, err := client.ListMergedPullRequests(context.Background(), "org", "api", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(prs) != 2 {
		t.Fatalf("Expected 2 pull requests, got %d", len(prs))
	}
	if prs[0].GetNumber() != 3 || prs[1].GetNumber() != 4 {
		t.Errorf("Expected PRs 3 and 4 newest first, got %d and %d", prs[0].GetNumber(), prs[1].GetNumber())
	}
}

func TestClient_ListPullRequestsUpdatedSince(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		// a next page link that must not be followed
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/org/api/pulls?page=2>; rel="next"`, r.Host))
		fmt.Fprint(w, `[
			{"number": 5, "updated_at": "2025-06-14T00:00:00Z"},
			{"number": 4, "updated_at": "2025-06-09T00:00:00Z"},
			{"number": 3, "updated_at": "2025-06-01T00:00:00Z"}
		]`)
	})

	since := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	prs, err := client.ListPullRequestsUpdatedSince(context.Background(), "org", "api", since)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(prs) != 2 {
		t.Errorf("Expected 2 pull requests, got %d", len(prs))
	}
	if calls != 1 {
		t.Errorf("Expected paging to stop after 1 request, got %d", calls)
	}
}

func TestClient_CompareCommits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/org/api/compare/base1...head1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"commits": [{"sha": "s1"}, {"sha": "s2"}]}`)
	})

	shas, err := client.CompareCommits(context.Background(), "org", "api", "base1", "head1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(shas) != 2 || shas[0] != "s1" || shas[1] != "s2" {
		t.Errorf("Expected [s1 s2], got %v", shas)
	}
}

func TestClient_ListIssuesDropsPullRequests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("labels"); got != "incident" {
			t.Errorf("Expected labels=incident, got %s", got)
		}
		fmt.Fprint(w, `[
			{"number": 1, "title": "outage"},
			{"number": 2, "title": "fix outage", "pull_request": {"url": "https://example.com/pulls/2"}}
		]`)
	})

	issues, err := client.ListIssues(context.Background(), "org", "api", IssueQuery{State: "closed", Labels: []string{"incident"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(issues) != 1 || issues[0].GetNumber() != 1 {
		t.Errorf("Expected only issue 1, got %v", issues)
	}
}

func TestClient_LatestReleaseNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	release, err := client.LatestRelease(context.Background(), "org", "api")
	if err != nil {
		t.Fatalf("Expected no error for a repository without releases, got %v", err)
	}
	if release != nil {
		t.Errorf("Expected nil release, got %v", release)
	}
}

func TestClient_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.ListDeployments(context.Background(), "org", "api", "production"); err == nil {
		t.Error("Expected error for 500 response, got nil")
	}
	if _, err := client.LatestRelease(context.Background(), "org", "api"); err == nil {
		t.Error("Expected error for 500 response, got nil")
	}
}

type countingClient struct {
	ClientInterface
	calls int
}

func (c *countingClient) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]string, error) {
	c.calls++
	return []string{"s1"}, nil
}

func (c *countingClient) LatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, error) {
	c.calls++
	return nil, nil
}

func TestCachedClient(t *testing.T) {
	fc, err := cache.NewFileCacheWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	inner := &countingClient{}
	client := NewCachedClient(inner, fc, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		shas, err := client.CompareCommits(ctx, "org", "api", "a", "b")
		if err != nil || len(shas) != 1 {
			t.Fatalf("Expected [s1], got %v (%v)", shas, err)
		}
		if _, err := client.LatestRelease(ctx, "org", "api"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", inner.calls)
	}
}

func TestParseRepo(t *testing.T) {
	repo, err := ParseRepo("org/api")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if repo.Owner != "org" || repo.Name != "api" || repo.String() != "org/api" {
		t.Errorf("Unexpected repo %+v", repo)
	}

	for _, bad := range []string{"", "org", "/api", "org/", "a/b/c"} {
		if _, err := ParseRepo(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
