package git

import "go.uber.org/zap"

// Option is a functor to pass optional parameters to the working copy backend
type Option func(*WorkingCopy)

// Logger specifies a logger for this backend
func Logger(logger *zap.Logger) Option {
	return func(w *WorkingCopy) {
		if logger != nil {
			w.l = logger
		}
	}
}

// WithExecutor specifies how git commands are run
func WithExecutor(e Executor) Option {
	return func(w *WorkingCopy) {
		if e != nil {
			w.exec = e
		}
	}
}

// Author sets the identity used for commits created by this backend.
// When not set, the identity is taken from the git configuration.
func Author(name, email string) Option {
	return func(w *WorkingCopy) {
		w.authorName = name
		w.authorEmail = email
	}
}
