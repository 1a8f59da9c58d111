package mpfd

import "errors"

var (
	// ErrWrongKind is returned by an accessor that does not apply to the kind
	// of the field, e.g. reading the text of a file field
	ErrWrongKind = errors.New("multipart field is of another kind")

	// ErrWrongStorage is returned by an accessor that does not apply to the
	// storage of a file field, e.g. reading the content of a file stored on
	// disk
	ErrWrongStorage = errors.New("multipart file is stored elsewhere")

	// ErrNoTempDir is returned when files are to be stored in the filesystem
	// but no temporary directory is configured
	ErrNoTempDir = errors.New("no temporary directory for uploaded files")

	// ErrFieldClosed is returned when data is appended to a closed field
	ErrFieldClosed = errors.New("multipart field is closed")

	// ErrMalformed is returned when the body does not follow the
	// multipart/form-data syntax
	ErrMalformed = errors.New("malformed multipart body")

	// ErrIncomplete is returned when fields are requested before the body
	// is completely decoded, or the body ends before the closing boundary
	ErrIncomplete = errors.New("multipart body is incomplete")

	// ErrDuplicateField is returned when two parts have the same name
	ErrDuplicateField = errors.New("duplicate multipart field")

	// ErrTooLarge is returned when a configured limit is exceeded
	ErrTooLarge = errors.New("multipart body exceeds limits")
)
