// Package giturl validates and parses repository source URLs. Validation is
// purely syntactic: no network call is made to confirm the remote exists.
package giturl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/repodock/repodock/internal/port"
)

// Info identifies a remote repository parsed from its source URL.
type Info struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// CloneURL returns the canonical HTTPS clone URL, regardless of the form
// the repository was submitted in.
func (i Info) CloneURL() string {
	return "https://" + i.Host + "/" + i.Owner + "/" + i.Repo + ".git"
}

var allowedHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

// Path segments after owner/repo that denote a web page rather than a
// clonable repository.
var browsingSegments = map[string]bool{
	"tree":     true,
	"blob":     true,
	"commit":   true,
	"commits":  true,
	"releases": true,
	"tags":     true,
	"pull":     true,
	"issues":   true,
}

// Parse validates raw and extracts the host, owner, and repository name.
// Accepted forms are HTTPS URLs on a recognized host and the equivalent
// git@host:owner/repo SSH form. Errors wrap port.ErrInvalidURL.
func Parse(raw string) (Info, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Info{}, fmt.Errorf("%w: empty url", port.ErrInvalidURL)
	}

	// Rewrite git@host:owner/repo to https://host/owner/repo for parsing.
	if strings.HasPrefix(raw, "git@") {
		rest := strings.TrimPrefix(raw, "git@")
		host, path, ok := strings.Cut(rest, ":")
		if !ok || host == "" {
			return Info{}, fmt.Errorf("%w: malformed ssh url", port.ErrInvalidURL)
		}
		raw = "https://" + host + "/" + path
	}

	if !strings.HasPrefix(raw, "https://") {
		return Info{}, fmt.Errorf("%w: unsupported scheme", port.ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", port.ErrInvalidURL, err)
	}
	if u.User != nil {
		return Info{}, fmt.Errorf("%w: credentials embedded in url", port.ErrInvalidURL)
	}

	host := strings.ToLower(u.Hostname())
	if !allowedHosts[host] {
		return Info{}, fmt.Errorf("%w: unrecognized host %q", port.ErrInvalidURL, host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return Info{}, fmt.Errorf("%w: missing owner or repository segment", port.ErrInvalidURL)
	}

	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || repo == "" {
		return Info{}, fmt.Errorf("%w: empty owner or repository segment", port.ErrInvalidURL)
	}

	// owner/repo/tree/main and friends are page URLs, not clone URLs.
	for _, seg := range parts[2:] {
		if browsingSegments[strings.ToLower(seg)] {
			return Info{}, fmt.Errorf("%w: browsing path segment %q", port.ErrInvalidURL, seg)
		}
	}

	return Info{Host: host, Owner: owner, Repo: repo}, nil
}

// Validate reports whether raw is an acceptable clone URL.
func Validate(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
