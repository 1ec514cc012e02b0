package execution

import (
	"errors"
	"testing"

	"gotest.tools/assert"
)

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, ErrorKindConnectivity.String(), "connectivity")
	assert.Equal(t, ErrorKindRejected.String(), "rejected")
	assert.Equal(t, ErrorKindNotImplemented.String(), "notImplemented")
	assert.Equal(t, ErrorKindInternal.String(), "internal")
}

func TestGetErrorByReject(t *testing.T) {
	assert.Equal(t, getErrorByReject("duplicateOrder"), ErrDuplicateClient)
	assert.Equal(t, getErrorByReject("orderNotFound"), ErrOrderNotFound)
	assert.Equal(t, getErrorByReject("insufficientFunds"), ErrInsufficientFunds)
	assert.Equal(t, getErrorByReject("orderExceedsLimit"), ErrExceedsLimit)

	// unmapped codes still come back typed, with the code preserved
	err := getErrorByReject("venueMood")
	assert.Equal(t, err.Kind, ErrorKindRejected)
	assert.Equal(t, err.Reason, "venueMood")
}

func TestExecErrorRetryable(t *testing.T) {
	assert.Check(t, ErrTimeout.Retryable())
	assert.Check(t, ErrSessionClosed.Retryable())
	assert.Check(t, !ErrDuplicateClient.Retryable())
	assert.Check(t, !ErrNotImplemented.Retryable())
	assert.Check(t, !ErrInternalParse.Retryable())
}

func TestExecErrorUnwrap(t *testing.T) {
	cause := errors.New("socket gone")
	err := connectivityError("submit", cause)
	assert.Check(t, errors.Is(err, cause))
	assert.Equal(t, err.Kind, ErrorKindConnectivity)
	assert.Equal(t, err.Op, "submit")

	internal := internalError("parse", cause)
	assert.Equal(t, internal.Kind, ErrorKindInternal)
	assert.Check(t, errors.Is(internal, cause))
}
