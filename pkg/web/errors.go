package web

import "github.com/oneconcern/relman/pkg/errors"

var (
	// ErrNoCore is returned when a server is created without a core
	ErrNoCore = errors.New("a core is required to handle webhook events")

	// ErrNoPackage is returned for release requests without a package name
	ErrNoPackage = errors.New("missing package in release request")
)
