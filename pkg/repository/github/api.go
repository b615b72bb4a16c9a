package github

// payloads exchanged with the GitHub REST API

type repoInfo struct {
	DefaultBranch string `json:"default_branch"`
}

type gitObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

type gitRef struct {
	Ref    string    `json:"ref"`
	Object gitObject `json:"object"`
}

type gitTag struct {
	Object gitObject `json:"object"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha,omitempty"`
}

type gitTree struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type newTree struct {
	BaseTree string      `json:"base_tree,omitempty"`
	Tree     []treeEntry `json:"tree"`
}

type gitCommit struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type newCommit struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type newBlob struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type created struct {
	SHA    string `json:"sha,omitempty"`
	ID     int64  `json:"id,omitempty"`
	Number int64  `json:"number,omitempty"`
}

type newRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type updateRef struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type pullRequest struct {
	Number int64  `json:"number,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Head   string `json:"head,omitempty"`
	Base   string `json:"base,omitempty"`
}

type dispatch struct {
	EventType     string                 `json:"event_type"`
	ClientPayload map[string]interface{} `json:"client_payload"`
}

type newRelease struct {
	TagName         string `json:"tag_name"`
	TargetCommitish string `json:"target_commitish,omitempty"`
	Name            string `json:"name"`
	Body            string `json:"body"`
	Prerelease      bool   `json:"prerelease"`
	MakeLatest      string `json:"make_latest"`
}
