package github

import (
	"net/http"

	"go.uber.org/zap"
)

// Option is a functor to pass optional parameters to the GitHub backend
type Option func(*Repository)

// Logger specifies a logger for this backend
func Logger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.l = logger
		}
	}
}

// Token sets a bearer token to authenticate API calls
func Token(token string) Option {
	return func(r *Repository) {
		r.token = token
	}
}

// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise. The default is https://api.github.com.
func BaseURL(u string) Option {
	return func(r *Repository) {
		if u != "" {
			r.baseURL = u
		}
	}
}

// HTTPClient specifies the client used to call the API
func HTTPClient(client *http.Client) Option {
	return func(r *Repository) {
		if client != nil {
			r.client = client
		}
	}
}

// UserAgent sets the user agent reported to the API
func UserAgent(agent string) Option {
	return func(r *Repository) {
		if agent != "" {
			r.userAgent = agent
		}
	}
}
