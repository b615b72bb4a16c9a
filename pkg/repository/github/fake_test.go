package github

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi"
)

type fakeCommit struct {
	tree   string
	parent string
}

type fakeSubtree struct {
	tree string
	dir  string
}

type fakePull struct {
	pullRequest
	open bool
}

// fakeGitHub emulates the subset of the GitHub REST API used by the backend, for repository o/r
type fakeGitHub struct {
	mu          sync.Mutex
	seq         int
	blobs       map[string][]byte
	trees       map[string]map[string]string
	subtrees    map[string]fakeSubtree
	commits     map[string]fakeCommit
	refs        map[string]string
	pulls       []*fakePull
	dispatches  []dispatch
	releases    []newRelease
	auth        string
	beforePatch func()

	// truncate recursive tree listings
	truncate bool
}

func newFakeGitHub(files map[string]string) *fakeGitHub {
	f := &fakeGitHub{
		blobs:    make(map[string][]byte),
		trees:    make(map[string]map[string]string),
		subtrees: make(map[string]fakeSubtree),
		commits:  make(map[string]fakeCommit),
		refs:     make(map[string]string),
	}
	tree := make(map[string]string)
	for k, v := range files {
		sha := f.newID()
		f.blobs[sha] = []byte(v)
		tree[k] = sha
	}
	treeID := f.newID()
	f.trees[treeID] = tree
	commitID := f.newID()
	f.commits[commitID] = fakeCommit{tree: treeID}
	f.refs["heads/main"] = commitID

	return f
}

func (f *fakeGitHub) newID() string {
	f.seq++
	return fmt.Sprintf("%040x", f.seq)
}

func (f *fakeGitHub) head(branch string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs["heads/"+branch]
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
}

func unprocessable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, apiError{Message: msg})
}

// resolve a commit-ish. Must be called with the lock held.
func (f *fakeGitHub) resolve(ref string) (string, bool) {
	if _, ok := f.commits[ref]; ok {
		return ref, true
	}
	sha, ok := f.refs["heads/"+ref]
	return sha, ok
}

func (f *fakeGitHub) descends(sha, ancestor string) bool {
	for sha != "" {
		if sha == ancestor {
			return true
		}
		sha = f.commits[sha].parent
	}
	return false
}

// listTree lists the direct children of a directory. Must be called with the lock held.
func (f *fakeGitHub) listTree(treeID, dir string) gitTree {
	res := gitTree{SHA: treeID}
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	dirs := make(map[string]bool)
	for p, sha := range f.trees[treeID] {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		i := strings.Index(rest, "/")
		if i < 0 {
			res.Tree = append(res.Tree, treeEntry{Path: rest, Type: "blob", Mode: "100644", SHA: sha})
			continue
		}
		if name := rest[:i]; !dirs[name] {
			dirs[name] = true
			id := f.newID()
			f.subtrees[id] = fakeSubtree{tree: treeID, dir: prefix + name}
			res.Tree = append(res.Tree, treeEntry{Path: name, Type: "tree", Mode: "040000", SHA: id})
		}
	}
	return res
}

func (f *fakeGitHub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.auth = req.Header.Get("Authorization")
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	const root = "/repos/o/r"

	r.Get(root, func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, repoInfo{DefaultBranch: "main"})
	})

	r.Get(root+"/git/ref/*", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ref := chi.URLParam(req, "*")
		sha, ok := f.refs[ref]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, gitRef{Ref: "refs/" + ref, Object: gitObject{SHA: sha, Type: "commit"}})
	})

	r.Get(root+"/contents/*", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ref := req.URL.Query().Get("ref")
		if ref == "" {
			ref = "main"
		}
		if req.Header.Get("Accept") != mediaRaw {
			unprocessable(w, "expected raw media type")
			return
		}
		sha, ok := f.resolve(ref)
		if !ok {
			notFound(w)
			return
		}
		blob, ok := f.trees[f.commits[sha].tree][chi.URLParam(req, "*")]
		if !ok {
			notFound(w)
			return
		}
		_, _ = w.Write(f.blobs[blob])
	})

	r.Get(root+"/git/trees/{sha}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sha := chi.URLParam(req, "sha")
		if sub, ok := f.subtrees[sha]; ok {
			writeJSON(w, http.StatusOK, f.listTree(sub.tree, sub.dir))
			return
		}
		c, ok := f.commits[sha]
		if !ok {
			notFound(w)
			return
		}
		if req.URL.Query().Get("recursive") == "" {
			writeJSON(w, http.StatusOK, f.listTree(c.tree, ""))
			return
		}
		res := gitTree{SHA: c.tree}
		dirs := make(map[string]bool)
		for p, sha := range f.trees[c.tree] {
			res.Tree = append(res.Tree, treeEntry{Path: p, Type: "blob", Mode: "100644", SHA: sha})
			if i := strings.LastIndex(p, "/"); i > 0 && !dirs[p[:i]] {
				dirs[p[:i]] = true
				res.Tree = append(res.Tree, treeEntry{Path: p[:i], Type: "tree", Mode: "040000"})
			}
		}
		if f.truncate && len(res.Tree) > 1 {
			res.Tree = res.Tree[:1]
			res.Truncated = true
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get(root+"/git/commits/{sha}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		sha := chi.URLParam(req, "sha")
		c, ok := f.commits[sha]
		if !ok {
			notFound(w)
			return
		}
		res := gitCommit{SHA: sha}
		res.Tree.SHA = c.tree
		writeJSON(w, http.StatusOK, res)
	})

	r.Get(root+"/commits/{ref}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for sha := range f.commits {
			if strings.HasPrefix(sha, chi.URLParam(req, "ref")) {
				writeJSON(w, http.StatusOK, gitCommit{SHA: sha})
				return
			}
		}
		notFound(w)
	})

	r.Post(root+"/git/blobs", func(w http.ResponseWriter, req *http.Request) {
		var in newBlob
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil || in.Encoding != "base64" {
			unprocessable(w, "invalid blob")
			return
		}
		content, err := base64.StdEncoding.DecodeString(in.Content)
		if err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		sha := f.newID()
		f.blobs[sha] = content
		writeJSON(w, http.StatusCreated, created{SHA: sha})
	})

	r.Post(root+"/git/trees", func(w http.ResponseWriter, req *http.Request) {
		var in newTree
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		tree := make(map[string]string)
		for k, v := range f.trees[in.BaseTree] {
			tree[k] = v
		}
		for _, e := range in.Tree {
			tree[e.Path] = e.SHA
		}
		sha := f.newID()
		f.trees[sha] = tree
		writeJSON(w, http.StatusCreated, created{SHA: sha})
	})

	r.Post(root+"/git/commits", func(w http.ResponseWriter, req *http.Request) {
		var in newCommit
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil || len(in.Parents) != 1 {
			unprocessable(w, "invalid commit")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		sha := f.newID()
		f.commits[sha] = fakeCommit{tree: in.Tree, parent: in.Parents[0]}
		writeJSON(w, http.StatusCreated, created{SHA: sha})
	})

	r.Patch(root+"/git/refs/*", func(w http.ResponseWriter, req *http.Request) {
		if f.beforePatch != nil {
			f.beforePatch()
		}
		var in updateRef
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		ref := chi.URLParam(req, "*")
		current, ok := f.refs[ref]
		if !ok {
			unprocessable(w, "Reference does not exist")
			return
		}
		if !in.Force && !f.descends(in.SHA, current) {
			unprocessable(w, "Update is not a fast forward")
			return
		}
		f.refs[ref] = in.SHA
		writeJSON(w, http.StatusOK, gitRef{Ref: "refs/" + ref, Object: gitObject{SHA: in.SHA, Type: "commit"}})
	})

	r.Post(root+"/git/refs", func(w http.ResponseWriter, req *http.Request) {
		var in newRef
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		ref := strings.TrimPrefix(in.Ref, "refs/")
		if _, exists := f.refs[ref]; exists {
			unprocessable(w, "Reference already exists")
			return
		}
		f.refs[ref] = in.SHA
		writeJSON(w, http.StatusCreated, gitRef{Ref: in.Ref, Object: gitObject{SHA: in.SHA, Type: "commit"}})
	})

	r.Get(root+"/pulls", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		res := []pullRequest{}
		for _, p := range f.pulls {
			if p.open && req.URL.Query().Get("head") == "o:"+p.Head {
				res = append(res, p.pullRequest)
			}
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Post(root+"/pulls", func(w http.ResponseWriter, req *http.Request) {
		var in pullRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.refs["heads/"+in.Head]; !ok {
			unprocessable(w, "head does not exist")
			return
		}
		in.Number = int64(len(f.pulls) + 1)
		f.pulls = append(f.pulls, &fakePull{pullRequest: in, open: true})
		writeJSON(w, http.StatusCreated, created{Number: in.Number})
	})

	r.Patch(root+"/pulls/{number}", func(w http.ResponseWriter, req *http.Request) {
		var in pullRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		n, _ := strconv.Atoi(chi.URLParam(req, "number"))
		f.mu.Lock()
		defer f.mu.Unlock()
		if n < 1 || n > len(f.pulls) {
			notFound(w)
			return
		}
		f.pulls[n-1].Title = in.Title
		f.pulls[n-1].Body = in.Body
		writeJSON(w, http.StatusOK, f.pulls[n-1].pullRequest)
	})

	r.Post(root+"/dispatches", func(w http.ResponseWriter, req *http.Request) {
		var in dispatch
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.dispatches = append(f.dispatches, in)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post(root+"/releases", func(w http.ResponseWriter, req *http.Request) {
		var in newRelease
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			unprocessable(w, err.Error())
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, existing := range f.releases {
			if existing.TagName == in.TagName {
				unprocessable(w, "Validation Failed: tag_name already_exists")
				return
			}
		}
		f.releases = append(f.releases, in)
		writeJSON(w, http.StatusCreated, created{ID: int64(len(f.releases))})
	})

	return r
}
