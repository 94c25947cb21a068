package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrInternal
	ErrAIUnavailable
	ErrInferenceFailed
	ErrInferenceTimeout
	ErrPromptTooLarge
	ErrIndexUnavailable
	ErrExportFailed
)
