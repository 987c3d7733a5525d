// Package errors provides coded, actionable errors for ripple's ambient
// layers: configuration, persistence, the inspector and the CLI.
//
// Every code maps to a registered template with a category, a short
// message. Call sites add detail, a suggestion or the underlying cause:
//
//	err := errors.New(errors.CodeConfigInvalid).
//	    WithDetail(`"inspect.addr" must not be empty`).
//	    WithSuggestion("set inspect.addr in ripple.json or RIPPLE_INSPECT_ADDR").
//	    Wrap(cause)
//
//	errors.Fprint(os.Stderr, err)
//	// ERROR R102: Invalid configuration value
//	//
//	//   "inspect.addr" must not be empty
//	//
//	//   Hint: set inspect.addr in ripple.json or RIPPLE_INSPECT_ADDR
//
// Errors created here support errors.Is and errors.As through Unwrap,
// and two errors with the same code match with errors.Is.
package errors
