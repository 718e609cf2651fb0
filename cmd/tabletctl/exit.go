package main

import (
	"context"
	"errors"

	"github.com/jrife/tablets/catalog"
)

const (
	exitOK                = 0
	exitError             = 1
	exitNotFound          = 2
	exitTryAgain          = 3
	exitResourceExhausted = 4
	exitUnknownOutcome    = 5
)

// exitCode maps an error to the process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, catalog.ErrNotFound):
		return exitNotFound
	case errors.Is(err, catalog.ErrConflict), errors.Is(err, catalog.ErrIllegalState):
		return exitTryAgain
	case errors.Is(err, catalog.ErrResourceExhausted):
		return exitResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return exitUnknownOutcome
	}

	return exitError
}

func hint(err error) string {
	switch exitCode(err) {
	case exitNotFound:
		return "nothing to do"
	case exitTryAgain:
		return "try again"
	case exitResourceExhausted:
		return "not enough live tablet servers for the replication factor"
	case exitUnknownOutcome:
		return "the outcome is unknown, check it with the status command"
	}

	return ""
}
