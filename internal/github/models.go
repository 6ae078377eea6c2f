package github

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-github/v39/github"
)

// Repo identifies a repository as owner/name
type Repo struct {
	Owner string
	Name  string
}

// ParseRepo parses "owner/name"
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// SortByMergedAt orders pull requests by merge time, most recent first
func SortByMergedAt(prs []*github.PullRequest) {
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].GetMergedAt().After(prs[j].GetMergedAt())
	})
}
