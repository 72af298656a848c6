package ingest

import (
	"errors"
	"fmt"
)

// User-input errors. The web layer maps all of these to HTTP 400.
var (
	// ErrDoubleUpload is returned when both a file and a URL are provided.
	ErrDoubleUpload = errors.New("you can not provide both, file and URL")

	// ErrNoUpload is returned when neither a file nor a URL is provided.
	ErrNoUpload = errors.New("you must provide either a file or URL to upload")

	// ErrMissingSchema is returned when a URL reference is neither a staged
	// data file nor something that looks like an http(s) address.
	ErrMissingSchema = errors.New("missing schema in the provided url")

	// ErrEmptyQuestion is returned when a question prompt is empty or whitespace.
	ErrEmptyQuestion = errors.New("your question is empty, please type a message and resend it")
)

// UnsupportedFileTypeError reports an upload with a file suffix outside the
// supported set {txt, pdf, sqlite, db}.
type UnsupportedFileTypeError struct {
	Suffix string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.Suffix)
}

// IsUserError reports whether err is a rejected-request error caused by user
// input rather than an internal failure.
func IsUserError(err error) bool {
	var unsupported *UnsupportedFileTypeError
	return errors.Is(err, ErrDoubleUpload) ||
		errors.Is(err, ErrNoUpload) ||
		errors.Is(err, ErrMissingSchema) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.As(err, &unsupported)
}
