package github

import (
	"fmt"
	"net/http"

	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// ErrAPI indicates any other GitHub API error
var ErrAPI = errors.New("github API error")

// apiError is the error document returned by the GitHub REST API
type apiError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	URL     string `json:"documentation_url,omitempty"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}

func apiErrors(err *apiError, rateLimited bool) error {
	// https://docs.github.com/en/rest/overview/resources-in-the-rest-api#client-errors
	switch err.Code {
	case 401:
		return status.ErrUnauthorized.Wrap(err)
	case 403:
		if rateLimited {
			return status.ErrTransient.Wrap(err)
		}
		return status.ErrForbidden.Wrap(err)
	case 404:
		return status.ErrNotFound.Wrap(err)
	case 409:
		return status.ErrConflict.Wrap(err)
	case 429:
		return status.ErrTransient.Wrap(err)
	default:
		if err.Code >= 500 {
			return status.ErrTransient.Wrap(err)
		}
		return ErrAPI.Wrap(err)
	}
}

// conflicting reports a validation failure as a conflict. GitHub answers 422
// when a reference update is not a fast forward or a tag already exists.
func conflicting(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnprocessableEntity {
		return status.ErrConflict.Wrap(apiErr)
	}
	return err
}
