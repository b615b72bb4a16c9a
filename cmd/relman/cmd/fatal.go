package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/oneconcern/relman/pkg/errors"
	"github.com/oneconcern/relman/pkg/repository/status"
)

// exit codes, by kind of error
const (
	exitFailure     = 1
	exitNotFound    = 2
	exitConflict    = 3
	exitNothingToDo = 4
	exitCredentials = 5
)

var (
	// infoLogger wraps informative messages to os.Stdout without cluttering expected output in tests.
	// To be used instead on fmt.Printf(os.Stdout, ...)
	infoLogger = log.New(os.Stdout, "", 0)

	errLogger = log.New(os.Stderr, "", 0)

	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

type kindOfError struct {
	kind error
	code int
	hint string
}

// kinds of errors a user may act upon, in order of precedence
var errorKinds = []kindOfError{
	{kind: status.ErrUnauthorized, code: exitCredentials, hint: "check your GitHub token (RELMAN_GITHUB_TOKEN)"},
	{kind: status.ErrForbidden, code: exitCredentials, hint: "the GitHub token lacks the permissions required for this operation"},
	{kind: status.ErrNothingToRelease, code: exitNothingToDo, hint: "add entries to the Unreleased section of the changelog, or pass --allow-empty with an explicit bump"},
	{kind: status.ErrInvalidBump, code: exitFailure, hint: "the requested version must be greater than the current one"},
	{kind: status.ErrConflict, code: exitConflict, hint: "the release branch was updated concurrently, try again"},
	{kind: status.ErrNotFound, code: exitNotFound, hint: ""},
	{kind: status.ErrParse, code: exitFailure, hint: "fix the manifest or configuration file"},
	{kind: status.ErrNotSupported, code: exitFailure, hint: ""},
	{kind: status.ErrTransient, code: exitFailure, hint: "the repository backend is temporarily unavailable, try again"},
}

func describeError(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.code, k.hint
		}
	}
	return exitFailure, ""
}

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(failure(msg))
		return
	}
	code, hint := describeError(err)
	if hint != "" {
		wrapFatalWithCodef(code, "%s: %v\n%s", failure(msg), err, faint(hint))
		return
	}
	wrapFatalWithCodef(code, "%s: %v", failure(msg), err)
}

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	errLogger.Printf(format, args...)
	osExit(code)
}

func logStdOut(format string, args ...interface{}) {
	infoLogger.Print(fmt.Sprintf(format, args...))
}
