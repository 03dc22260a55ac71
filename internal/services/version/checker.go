// Package version checks the GitHub release feed for a newer build. The
// check is best-effort: failures are reported in the result, logged at
// debug by the caller, and never block startup.
package version

import (
	"context"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

const (
	repoOwner = "ternarybob"
	repoName  = "tabula"

	checkTimeout = 5 * time.Second
)

// CheckResult describes the outcome of an update check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Err            error
}

// Checker queries GitHub for the latest release.
type Checker struct {
	client *github.Client
}

// NewChecker creates an unauthenticated release checker. Release lookups on
// public repositories need no token.
func NewChecker() *Checker {
	return &Checker{client: github.NewClient(nil)}
}

// WithBaseURL points the checker at a different API endpoint, used by tests.
func (c *Checker) WithBaseURL(baseURL string) *Checker {
	client, err := c.client.WithEnterpriseURLs(baseURL, baseURL)
	if err == nil {
		c.client = client
	}
	return c
}

// Check compares the running version against the latest published release.
// Development builds short-circuit to no-update without a network call.
func (c *Checker) Check(ctx context.Context, current string) CheckResult {
	result := CheckResult{CurrentVersion: current}

	if isDevVersion(current) {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	release, _, err := c.client.Repositories.GetLatestRelease(ctx, repoOwner, repoName)
	if err != nil {
		result.Err = err
		return result
	}

	result.LatestVersion = release.GetTagName()
	result.UpdateURL = release.GetHTMLURL()
	result.HasUpdate = normalizeVersion(result.LatestVersion) != normalizeVersion(current)
	return result
}

func isDevVersion(version string) bool {
	switch version {
	case "", "dev", "unknown":
		return true
	}
	return strings.HasSuffix(version, "-dirty") || strings.Contains(version, "devel")
}

func normalizeVersion(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}
