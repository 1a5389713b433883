package main

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
)

const (
	exitFailure      = 1
	exitUsage        = 2
	exitLoginNeeded  = 3
	exitNotFound     = 4
	exitRejected     = 5
	exitUnavailable  = 6
	exitNotPermitted = 7
)

// describeError maps an error to the process exit code and the line shown
// on stderr.
func describeError(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}

	switch status.Code(err) {
	case codes.InvalidArgument:
		return exitUsage, msg
	case codes.Unauthenticated:
		return exitLoginNeeded, msg + " (run: storefront login <username>)"
	case codes.NotFound:
		return exitNotFound, msg
	case codes.FailedPrecondition:
		return exitRejected, msg
	case codes.Unavailable, codes.DeadlineExceeded:
		return exitUnavailable, "backend unavailable: " + msg
	case codes.PermissionDenied:
		return exitNotPermitted, msg
	default:
		return exitFailure, msg
	}
}
