package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"strings"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

type repositoryInfo struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type branchRef struct {
	Ref string `json:"ref"`
}

type pullRequest struct {
	Head           branchRef `json:"head"`
	Merged         bool      `json:"merged"`
	MergeCommitSHA string    `json:"merge_commit_sha"`
}

type pullRequestEvent struct {
	Action      string         `json:"action"`
	PullRequest pullRequest    `json:"pull_request"`
	Repository  repositoryInfo `json:"repository"`
}

type releaseRequestPayload struct {
	Package string `json:"package"`
	Version string `json:"version"`
}

type repositoryDispatchEvent struct {
	Action        string                `json:"action"`
	Branch        string                `json:"branch"`
	ClientPayload releaseRequestPayload `json:"client_payload"`
	Repository    repositoryInfo        `json:"repository"`
}

// isJSON tells if a content type designates JSON, including +json suffixes
func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}

// Sign a payload as GitHub does
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, body []byte, signature string) bool {
	if len(secret) == 0 {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(strings.TrimSpace(signature)))
}
