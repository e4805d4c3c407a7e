package git

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-git/go-git/v5"
)

// ErrNoOriginRemote indicates the repository has no "origin" remote, or no
// remote URL could be parsed into host/org/repo.
var ErrNoOriginRemote = errors.New("no origin remote found")

var (
	sshRemotePattern   = regexp.MustCompile(`^git@([^:]+):([^/]+)/(.+?)(?:\.git)?$`)
	httpsRemotePattern = regexp.MustCompile(`^https?://([^/]+)/([^/]+)/(.+?)(?:\.git)?/?$`)
)

// OriginOrg opens the git repository at repoPath and returns the
// organization (or user) segment of its "origin" remote URL, supporting both
// SSH (`git@host:org/repo.git`) and HTTPS (`https://host/org/repo.git`) forms
// (spec.md §4.11). It returns ErrNoOriginRemote if repoPath is not a repo, has
// no origin remote, or the remote URL does not match either form.
func OriginOrg(repoPath string) (string, error) {
	_, org, _, err := ParseOriginRemote(repoPath)
	return org, err
}

// ParseOriginRemote opens the git repository at repoPath and parses its
// "origin" remote URL into (host, org, repo).
func ParseOriginRemote(repoPath string) (host, org, repo string, err error) {
	r, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %s", ErrNoOriginRemote, err)
	}

	remote, err := r.Remote("origin")
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %s", ErrNoOriginRemote, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", "", ErrNoOriginRemote
	}

	for _, u := range urls {
		if host, org, repo, ok := ParseRemoteURL(u); ok {
			return host, org, repo, nil
		}
	}
	return "", "", "", ErrNoOriginRemote
}

// ParseRemoteURL parses a git remote URL in SSH (`git@host:org/repo.git`) or
// HTTPS (`https://host/org/repo.git`) form into (host, org, repo).
func ParseRemoteURL(url string) (host, org, repo string, ok bool) {
	if m := sshRemotePattern.FindStringSubmatch(url); len(m) == 4 {
		return m[1], m[2], m[3], true
	}
	if m := httpsRemotePattern.FindStringSubmatch(url); len(m) == 4 {
		return m[1], m[2], m[3], true
	}
	return "", "", "", false
}

// IsRepo reports whether path is inside a git working tree.
func IsRepo(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}
