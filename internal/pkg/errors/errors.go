package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrInternal     = errors.New("internal")

	// ErrIndexUnavailable means the vector store could not be reached after
	// retries. It is distinct from an empty result set, which is a valid
	// answer. Retrieval consumers absorb it and degrade to empty context.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrInference and ErrInferenceTimeout are fatal to the current request.
	ErrInference        = errors.New("inference failed")
	ErrInferenceTimeout = errors.New("inference timed out")

	// ErrPromptTooLarge means trimming history to zero still exceeded the
	// prompt budget. Client-correctable: shorten input or clear history.
	ErrPromptTooLarge = errors.New("prompt too large")

	ErrAIUnavailable = errors.New("ai backend not configured")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
