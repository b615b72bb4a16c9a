// Package web exposes the webhook API of the relman service.
package web

import (
	"context"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/relman/pkg/metrics"
	"github.com/oneconcern/relman/pkg/release"
	"github.com/oneconcern/relman/pkg/repository"
	"github.com/oneconcern/relman/pkg/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxPayloadSize is the largest webhook payload GitHub delivers
const maxPayloadSize = 25 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServerParams configure the API server
type ServerParams struct {
	WebhookSecret string
	Core          Core
	Logger        *zap.Logger
}

// Server handles webhook deliveries. Release operations run in the background.
type Server struct {
	params ServerParams
	l      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates an API server
func NewServer(params ServerParams) (*Server, error) {
	if params.Core == nil {
		return nil, ErrNoCore
	}
	l := params.Logger
	if l == nil {
		l = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{params: params, l: l, ctx: ctx, cancel: cancel}, nil
}

// Wait for background operations to complete
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close cancels background operations and waits for them
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) background(name string, fields []zap.Field, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		l := s.l.With(fields...)
		if err := run(s.ctx); err != nil {
			l.Error(name+" failed", zap.Error(err))
			return
		}
		l.Info(name + " done")
	}()
}

func reply(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

// HandleWebhook receives GitHub webhook deliveries
func (s *Server) HandleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event := r.Header.Get(headerEvent)
		l := s.l.With(zap.String("event", event), zap.String("delivery", r.Header.Get(headerDelivery)))
		outcome := "rejected"
		defer func() {
			metrics.WebhookEvents.WithLabelValues(event, outcome).Inc()
		}()

		if !isJSON(r.Header.Get("Content-Type")) {
			reply(w, http.StatusUnsupportedMediaType, "expected a JSON payload")
			return
		}
		if event == "" {
			reply(w, http.StatusBadRequest, "missing "+headerEvent+" header")
			return
		}
		signature := r.Header.Get(headerSignature)
		if signature == "" {
			reply(w, http.StatusBadRequest, "missing "+headerSignature+" header")
			return
		}
		body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
		if err != nil {
			reply(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		if !validSignature([]byte(s.params.WebhookSecret), body, signature) {
			l.Warn("invalid webhook signature")
			reply(w, http.StatusForbidden, "invalid signature")
			return
		}
		if !gjson.ValidBytes(body) {
			reply(w, http.StatusBadRequest, "malformed JSON payload")
			return
		}

		var accepted bool
		switch event {
		case "pull_request":
			accepted, err = s.onPullRequest(l, body)
		case "repository_dispatch":
			accepted, err = s.onRepositoryDispatch(l, body)
		}
		switch {
		case err != nil:
			l.Info("invalid webhook payload", zap.Error(err))
			reply(w, http.StatusUnprocessableEntity, err.Error())
		case accepted:
			outcome = "accepted"
			reply(w, http.StatusAccepted, "accepted")
		default:
			outcome = "ignored"
			reply(w, http.StatusOK, "ignored")
		}
	}
}

func (s *Server) onPullRequest(l *zap.Logger, body []byte) (bool, error) {
	var payload pullRequestEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}
	pr := payload.PullRequest
	if payload.Action != "closed" || !pr.Merged || pr.MergeCommitSHA == "" || !release.IsReleaseBranch(pr.Head.Ref) {
		return false, nil
	}
	repo, branch, rev := payload.Repository.FullName, pr.Head.Ref, repository.Revision(pr.MergeCommitSHA)
	s.background("release", []zap.Field{
		zap.String("repository", repo),
		zap.String("branch", branch),
		zap.String("revision", rev.String()),
	}, func(ctx context.Context) error {
		return s.params.Core.HandleMerge(ctx, repo, branch, rev)
	})
	l.Debug("release scheduled", zap.String("branch", branch))
	return true, nil
}

func (s *Server) onRepositoryDispatch(l *zap.Logger, body []byte) (bool, error) {
	var payload repositoryDispatchEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}
	if payload.Action != release.EventReleaseRequest {
		return false, nil
	}
	name := strings.TrimSpace(payload.ClientPayload.Package)
	if name == "" {
		return false, ErrNoPackage
	}
	req, err := version.ParseRequest(payload.ClientPayload.Version)
	if err != nil {
		return false, err
	}
	repo, branch := payload.Repository.FullName, payload.Branch
	s.background("release request", []zap.Field{
		zap.String("repository", repo),
		zap.String("package", name),
		zap.Stringer("version", req),
	}, func(ctx context.Context) error {
		return s.params.Core.BuildRelease(ctx, repo, branch, name, req)
	})
	l.Debug("release request scheduled", zap.String("package", name))
	return true, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, "OK")
}

// InitRouter sets the routes of the API
func InitRouter(srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(instrumentRequests(srv.l))
	r.Use(middleware.Recoverer)

	r.Post("/github/webhook", srv.HandleWebhook())
	r.Get("/healthz", healthz)
	r.Get("/readyz", healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
