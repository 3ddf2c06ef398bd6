package plugin

import "errors"

// Sentinel errors returned by the declaration API and the binder.
var (
	// ErrInvalidArgument reports a malformed declaration call, such as an
	// unknown Set key or a value of the wrong type. Declaration-time errors
	// are programmer errors and should stop plugin-type loading.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingRequiredOptions reports that the host's option store lacks
	// options the descriptor declared as required. Binding is aborted for
	// the instance; the host continues with other plugins.
	ErrMissingRequiredOptions = errors.New("missing required options")

	// ErrMissingHandler reports a dispatch routed to a handler name the
	// instance never registered. For matcher and listener rules this
	// degrades to a logged warning; for hooks and CTCP commands it
	// propagates, since those are author-declared contracts.
	ErrMissingHandler = errors.New("missing handler")
)
