package project

import (
	"fmt"

	"github.com/oneconcern/relman/pkg/repository/status"
)

// ParseError reports a package whose manifest could not be parsed.
// It matches status.ErrParse.
type ParseError struct {
	Path string
	Err  error
}

func newParseError(pth string, err error) *ParseError {
	if !status.ErrParse.Is(err) {
		err = status.ErrParse.Wrap(err)
	}
	return &ParseError{Path: pth, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
