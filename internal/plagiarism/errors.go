package plagiarism

import "errors"

var (
	// ErrDuplicateDocument is returned when the corpus already holds a
	// document with the same name (or content, under the content hash policy)
	ErrDuplicateDocument = errors.New("document already exists")

	// ErrEmptyDocumentName is returned when a check has no document name
	ErrEmptyDocumentName = errors.New("document name is required")
)
