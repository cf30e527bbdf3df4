package reduce

import "errors"

// Failure taxonomy for the reduction layer.
//
// Recoverable conditions (e.g. a receive finding fewer
// bytes than requested) are not errors; they are reported
// as short counts and the caller retries later.
var (
	// ErrInvalidArgument reports a missing operator or a
	// malformed argument, detected at construction time.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTypeMismatch reports an operator paired with an
	// incompatible element type.
	ErrTypeMismatch = errors.New("operator type mismatch")

	// ErrUnsupported reports an operation the receiver
	// does not implement, such as layering a second
	// reduction on a buffer that already reduces.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrCollectiveFailure reports a transport failure
	// during a cross-process reduce. The aggregate is
	// invalid; no partial result is returned.
	ErrCollectiveFailure = errors.New("collective reduce failed")
)
