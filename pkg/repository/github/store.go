// Copyright © 2018 One Concern

// Package github implements a remote repository hosted on GitHub, over its REST API.
//
// Branch updates are built with the git data API (blobs, trees, commits) and applied
// with a fast-forward only reference update, so that a concurrent writer is
// detected as a conflict.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/repository/status"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	mediaJSON      = "application/vnd.github+json"
	mediaRaw       = "application/vnd.github.raw"
)

var (
	_ repository.Remote = &Repository{}

	json      = jsoniter.ConfigCompatibleWithStandardLibrary
	commitRex = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Repository is a repository hosted on GitHub
type Repository struct {
	owner     string
	name      string
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	l         *zap.Logger

	mu            sync.Mutex
	defaultBranch string
}

// New GitHub repository backend, for repository owner/name
func New(owner, name string, opts ...Option) *Repository {
	r := &Repository{
		owner:     owner,
		name:      name,
		baseURL:   defaultBaseURL,
		userAgent: "relman",
		client:    http.DefaultClient,
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	r.baseURL = strings.TrimRight(r.baseURL, "/")

	if r.token != "" {
		r.client = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.token}),
				Base:   r.client.Transport,
			},
			Timeout: r.client.Timeout,
		}
	}
	return r
}

// ParseFullName splits a full repository name "owner/name"
func ParseFullName(fullName string) (string, string, error) {
	parts := strings.Split(strings.TrimSuffix(fullName, ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return parts[0], parts[1], nil
}

func (r *Repository) String() string {
	return "github@" + r.owner + "/" + r.name
}

func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (r *Repository) endpoint(p string) string {
	u := fmt.Sprintf("%s/repos/%s/%s", r.baseURL, url.PathEscape(r.owner), url.PathEscape(r.name))
	if p == "" {
		return u
	}
	return u + "/" + p
}

// call the API, decoding the JSON response into out when not nil
func (r *Repository) call(ctx context.Context, method, p string, in, out interface{}) error {
	body, err := r.do(ctx, method, p, mediaJSON, in)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ErrAPI.Wrap(fmt.Errorf("decoding response to %s %s: %v", method, p, err))
	}
	return nil
}

func (r *Repository) do(ctx context.Context, method, p, accept string, in interface{}) ([]byte, error) {
	var payload io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.endpoint(p), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", r.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r.l.Debug("github API call", zap.String("method", method), zap.String("path", p))
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, status.ErrTransient.Wrap(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status.ErrTransient.Wrap(err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &apiError{Code: resp.StatusCode}
		if e := json.Unmarshal(body, apiErr); e != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErrors(apiErr, resp.Header.Get("X-RateLimit-Remaining") == "0")
	}
	return body, nil
}

// DefaultBranch of the repository. The value is retrieved once.
func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defaultBranch != "" {
		return r.defaultBranch, nil
	}
	var info repoInfo
	body, err := r.do(ctx, http.MethodGet, "", mediaJSON, nil)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", ErrAPI.Wrap(err)
	}
	r.defaultBranch = info.DefaultBranch
	return r.defaultBranch, nil
}

func (r *Repository) ref(ctx context.Context, ref string) (repository.Revision, error) {
	var res gitRef
	if err := r.call(ctx, http.MethodGet, "git/ref/"+escapePath(ref), nil, &res); err != nil {
		return "", err
	}
	if res.Object.Type == "tag" {
		// annotated tag
		var tag gitTag
		if err := r.call(ctx, http.MethodGet, "git/tags/"+res.Object.SHA, nil, &tag); err != nil {
			return "", err
		}
		return repository.Revision(tag.Object.SHA), nil
	}
	return repository.Revision(res.Object.SHA), nil
}

// Resolve a revision to a commit id
func (r *Repository) Resolve(ctx context.Context, rev repository.Revision) (repository.Revision, error) {
	if rev.IsZero() || rev == repository.Head {
		branch, err := r.DefaultBranch(ctx)
		if err != nil {
			return "", err
		}
		return r.ref(ctx, "heads/"+branch)
	}
	if branch, ok := rev.BranchName(); ok {
		return r.ref(ctx, "heads/"+branch)
	}
	if tag, ok := rev.TagName(); ok {
		return r.ref(ctx, "tags/"+tag)
	}
	if commitRex.MatchString(string(rev)) {
		return rev, nil
	}

	resolved, err := r.ref(ctx, "heads/"+string(rev))
	if err == nil || !errors.Is(err, status.ErrNotFound) {
		return resolved, err
	}
	var commit gitCommit
	if err := r.call(ctx, http.MethodGet, "commits/"+url.PathEscape(string(rev)), nil, &commit); err != nil {
		return "", err
	}
	return repository.Revision(commit.SHA), nil
}

// ReadFile at some revision
func (r *Repository) ReadFile(ctx context.Context, name string, rev repository.Revision) ([]byte, error) {
	p := "contents/" + escapePath(name)
	if !rev.IsZero() && rev != repository.Head {
		p += "?ref=" + url.QueryEscape(string(rev))
	}
	content, err := r.do(ctx, http.MethodGet, p, mediaRaw, nil)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// ListFiles in the tree of some revision
func (r *Repository) ListFiles(ctx context.Context, pattern string, rev repository.Revision, apply repository.ApplyPathFunc) error {
	commit, err := r.Resolve(ctx, rev)
	if err != nil {
		return err
	}
	var tree gitTree
	if err := r.call(ctx, http.MethodGet, "git/trees/"+string(commit)+"?recursive=1", nil, &tree); err != nil {
		return err
	}
	if tree.Truncated {
		r.l.Debug("tree listing truncated by the API, walking sub-trees", zap.Stringer("revision", commit))
		return r.walkTree(ctx, string(commit), "", pattern, apply)
	}
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || !repository.Match(pattern, entry.Path) {
			continue
		}
		if err := apply(entry.Path); err != nil {
			return err
		}
	}
	return nil
}

// walkTree lists a tree one level at a time
func (r *Repository) walkTree(ctx context.Context, sha, dir, pattern string, apply repository.ApplyPathFunc) error {
	var tree gitTree
	if err := r.call(ctx, http.MethodGet, "git/trees/"+sha, nil, &tree); err != nil {
		return err
	}
	if tree.Truncated {
		return status.ErrNotSupported.Wrapf("directory %q of %s has too many entries to be listed", dir, r)
	}
	for _, entry := range tree.Tree {
		p := path.Join(dir, entry.Path)
		switch entry.Type {
		case "tree":
			if err := r.walkTree(ctx, entry.SHA, p, pattern, apply); err != nil {
				return err
			}
		case "blob":
			if !repository.Match(pattern, p) {
				continue
			}
			if err := apply(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// BranchHead returns the commit a branch points to
func (r *Repository) BranchHead(ctx context.Context, branch string) (repository.Revision, error) {
	return r.ref(ctx, "heads/"+branch)
}

// UpdateBranch creates a commit with all edits on top of base, then moves the branch to it
func (r *Repository) UpdateBranch(ctx context.Context, branch string, base repository.Revision, bundle repository.EditBundle) (repository.Revision, error) {
	head, err := r.BranchHead(ctx, branch)
	exists := err == nil
	switch {
	case exists && head != base:
		return "", status.ErrConflict.Wrapf("branch %q is at %s, not %s", branch, head, base)
	case err != nil && !errors.Is(err, status.ErrNotFound):
		return "", err
	}

	var parent gitCommit
	if err := r.call(ctx, http.MethodGet, "git/commits/"+string(base), nil, &parent); err != nil {
		return "", err
	}

	entries := make([]treeEntry, 0, len(bundle.Edits))
	for _, edit := range bundle.Edits {
		var blob created
		if err := r.call(ctx, http.MethodPost, "git/blobs", newBlob{
			Content:  base64.StdEncoding.EncodeToString(edit.Content),
			Encoding: "base64",
		}, &blob); err != nil {
			return "", err
		}
		entries = append(entries, treeEntry{
			Path: strings.TrimPrefix(edit.Path, "/"),
			Mode: "100644",
			Type: "blob",
			SHA:  blob.SHA,
		})
	}

	var tree created
	if err := r.call(ctx, http.MethodPost, "git/trees", newTree{BaseTree: parent.Tree.SHA, Tree: entries}, &tree); err != nil {
		return "", err
	}
	message := bundle.Message
	if message == "" {
		message = "update " + branch
	}
	var commit created
	if err := r.call(ctx, http.MethodPost, "git/commits", newCommit{
		Message: message,
		Tree:    tree.SHA,
		Parents: []string{string(base)},
	}, &commit); err != nil {
		return "", err
	}

	if exists {
		err = r.call(ctx, http.MethodPatch, "git/refs/heads/"+escapePath(branch), updateRef{SHA: commit.SHA}, nil)
	} else {
		err = r.call(ctx, http.MethodPost, "git/refs", newRef{Ref: "refs/heads/" + branch, SHA: commit.SHA}, nil)
	}
	if err != nil {
		return "", conflicting(err)
	}
	r.l.Info("branch updated", zap.String("branch", branch), zap.String("head", commit.SHA))

	return repository.Revision(commit.SHA), nil
}

// OpenOrUpdateReleaseRequest opens a pull request from a branch, or updates the open one
func (r *Repository) OpenOrUpdateReleaseRequest(ctx context.Context, branch, title, body string) (repository.RequestID, error) {
	var open []pullRequest
	query := url.Values{
		"state": []string{"open"},
		"head":  []string{r.owner + ":" + branch},
	}
	if err := r.call(ctx, http.MethodGet, "pulls?"+query.Encode(), nil, &open); err != nil {
		return 0, err
	}
	if len(open) > 0 {
		number := open[0].Number
		if err := r.call(ctx, http.MethodPatch, fmt.Sprintf("pulls/%d", number), pullRequest{Title: title, Body: body}, nil); err != nil {
			return 0, err
		}
		return repository.RequestID(number), nil
	}

	base, err := r.DefaultBranch(ctx)
	if err != nil {
		return 0, err
	}
	var pr created
	if err := r.call(ctx, http.MethodPost, "pulls", pullRequest{
		Title: title,
		Body:  body,
		Head:  branch,
		Base:  base,
	}, &pr); err != nil {
		return 0, err
	}
	return repository.RequestID(pr.Number), nil
}

// TriggerDispatch sends a repository_dispatch event
func (r *Repository) TriggerDispatch(ctx context.Context, event repository.Event) error {
	payload := make(map[string]interface{}, len(event.Payload)+1)
	for k, v := range event.Payload {
		payload[k] = v
	}
	if event.ID != "" {
		payload["id"] = event.ID
	}
	return r.call(ctx, http.MethodPost, "dispatches", dispatch{EventType: event.Type, ClientPayload: payload}, nil)
}

// CreateRelease publishes a release, creating its tag at the target revision
func (r *Repository) CreateRelease(ctx context.Context, spec repository.ReleaseSpec) (repository.ReleaseID, error) {
	latest := "false"
	if spec.Latest {
		latest = "true"
	}
	var release created
	if err := r.call(ctx, http.MethodPost, "releases", newRelease{
		TagName:         spec.Tag,
		TargetCommitish: string(spec.Target),
		Name:            spec.Name,
		Body:            spec.Body,
		Prerelease:      spec.Prerelease,
		MakeLatest:      latest,
	}, &release); err != nil {
		return 0, conflicting(err)
	}
	return repository.ReleaseID(release.ID), nil
}
