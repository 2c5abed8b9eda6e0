package manifest

import (
	"fmt"

	"github.com/candlepin/candlepin-sub033/manifest/archive"
	"github.com/candlepin/candlepin-sub033/manifest/codec"
)

// ExtractionError signals a malformed or incomplete archive
type ExtractionError = archive.ExtractionError

// ImporterError signals that an archive could not be applied. Meta is set
// when the manifest metadata was read before the failure.
type ImporterError struct {
	Message string
	Cause   error
	Meta    *codec.MetaRecord
}

// Error implements the error interface
func (e *ImporterError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *ImporterError) Unwrap() error {
	return e.Cause
}

// DataFormatError signals a structurally valid archive with missing or
// invalid referenced data.
type DataFormatError struct {
	Message string
}

// Error implements the error interface
func (e *DataFormatError) Error() string {
	return e.Message
}

func dataFormatError(format string, args ...any) *DataFormatError {
	return &DataFormatError{Message: fmt.Sprintf(format, args...)}
}

// ExportCreationError signals a failure while building an export
type ExportCreationError struct {
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ExportCreationError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *ExportCreationError) Unwrap() error {
	return e.Cause
}

// DuplicateUpstreamConsumerError is raised when the upstream consumer of an
// archive is already bound to another owner. It cannot be overridden.
type DuplicateUpstreamConsumerError struct {
	UUID string
}

// Error implements the error interface
func (e *DuplicateUpstreamConsumerError) Error() string {
	return "This subscription management application has already been imported by another owner."
}
