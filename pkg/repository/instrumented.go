// Copyright © 2018 One Concern

package repository

import (
	"context"
	"strings"
	"time"

	"github.com/oneconcern/relman/pkg/metrics"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// Instrument decorates a backend with logging, tracing and latency metrics.
//
// The returned backend exposes the same capabilities as the decorated one:
// instrumenting a Remote yields a Remote, and a Brancher yields a Brancher.
func Instrument(tr opentracing.Tracer, logger *zap.Logger, backend Backend) Backend {
	if tr == nil {
		tr = opentracing.NoopTracer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	i := instrumented{
		tr:      tr,
		backend: backend,
		l:       logger.With(zap.String("backend", backend.String())),
	}
	switch b := backend.(type) {
	case Remote:
		return &instrumentedRemote{instrumentedBrancher: instrumentedBrancher{instrumented: i, brancher: b}, remote: b}
	case Brancher:
		return &instrumentedBrancher{instrumented: i, brancher: b}
	default:
		return &i
	}
}

type instrumented struct {
	backend Backend
	tr      opentracing.Tracer
	l       *zap.Logger
}

func (i *instrumented) opName(name string) string {
	return strings.Join([]string{"repository", i.String(), name}, ".")
}

func (i *instrumented) spanFromContext(ctx context.Context, name string) opentracing.Span {
	parent := opentracing.SpanFromContext(ctx)
	var span opentracing.Span
	if parent != nil {
		span = i.tr.StartSpan(i.opName(name), opentracing.ChildOf(parent.Context()))
	} else {
		span = i.tr.StartSpan(i.opName(name))
	}
	return span
}

// track starts a span and returns a function to call with the outcome of the operation
func (i *instrumented) track(ctx context.Context, name string, fields ...zap.Field) func(error) {
	span := i.spanFromContext(ctx, name)
	start := time.Now()
	i.l.Debug("repository "+name, fields...)

	return func(err error) {
		metrics.Since(start, i.backend.String(), name, err)
		if err != nil {
			span.SetTag("error", true)
			i.l.Debug("repository "+name+" failed", append(fields, zap.Error(err))...)
		}
		span.Finish()
	}
}

func (i *instrumented) String() string {
	return i.backend.String()
}

func (i *instrumented) Resolve(ctx context.Context, rev Revision) (resolved Revision, err error) {
	done := i.track(ctx, "Resolve", zap.Stringer("revision", rev))
	defer func() { done(err) }()

	return i.backend.Resolve(ctx, rev)
}

func (i *instrumented) ReadFile(ctx context.Context, path string, rev Revision) (content []byte, err error) {
	done := i.track(ctx, "ReadFile", zap.String("path", path), zap.Stringer("revision", rev))
	defer func() { done(err) }()

	return i.backend.ReadFile(ctx, path, rev)
}

func (i *instrumented) ListFiles(ctx context.Context, pattern string, rev Revision, apply ApplyPathFunc) (err error) {
	done := i.track(ctx, "ListFiles", zap.String("pattern", pattern), zap.Stringer("revision", rev))
	defer func() { done(err) }()

	return i.backend.ListFiles(ctx, pattern, rev, apply)
}

type instrumentedBrancher struct {
	instrumented
	brancher Brancher
}

func (i *instrumentedBrancher) BranchHead(ctx context.Context, branch string) (head Revision, err error) {
	done := i.track(ctx, "BranchHead", zap.String("branch", branch))
	defer func() { done(err) }()

	return i.brancher.BranchHead(ctx, branch)
}

func (i *instrumentedBrancher) UpdateBranch(ctx context.Context, branch string, base Revision, bundle EditBundle) (head Revision, err error) {
	done := i.track(ctx, "UpdateBranch",
		zap.String("branch", branch), zap.Stringer("base", base), zap.Strings("paths", bundle.Paths()),
	)
	defer func() { done(err) }()

	head, err = i.brancher.UpdateBranch(ctx, branch, base, bundle)
	if err == nil {
		i.l.Info("branch updated", zap.String("branch", branch), zap.Stringer("head", head))
	}
	return head, err
}

type instrumentedRemote struct {
	instrumentedBrancher
	remote Remote
}

func (i *instrumentedRemote) DefaultBranch(ctx context.Context) (branch string, err error) {
	done := i.track(ctx, "DefaultBranch")
	defer func() { done(err) }()

	return i.remote.DefaultBranch(ctx)
}

func (i *instrumentedRemote) OpenOrUpdateReleaseRequest(ctx context.Context, branch, title, body string) (id RequestID, err error) {
	done := i.track(ctx, "OpenOrUpdateReleaseRequest", zap.String("branch", branch), zap.String("title", title))
	defer func() { done(err) }()

	id, err = i.remote.OpenOrUpdateReleaseRequest(ctx, branch, title, body)
	if err == nil {
		i.l.Info("release request ready", zap.String("branch", branch), zap.Int64("request", int64(id)))
	}
	return id, err
}

func (i *instrumentedRemote) TriggerDispatch(ctx context.Context, event Event) (err error) {
	done := i.track(ctx, "TriggerDispatch", zap.String("event", event.Type), zap.String("id", event.ID))
	defer func() { done(err) }()

	return i.remote.TriggerDispatch(ctx, event)
}

func (i *instrumentedRemote) CreateRelease(ctx context.Context, spec ReleaseSpec) (id ReleaseID, err error) {
	done := i.track(ctx, "CreateRelease", zap.String("tag", spec.Tag), zap.Stringer("target", spec.Target))
	defer func() { done(err) }()

	return i.remote.CreateRelease(ctx, spec)
}
