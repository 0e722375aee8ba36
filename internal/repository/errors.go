package repository

import "errors"

// ErrDocumentNotFound is returned when no document has the requested ID
var ErrDocumentNotFound = errors.New("document not found")

// ErrReportNotFound is returned when no comparison report has the requested check ID
var ErrReportNotFound = errors.New("report not found")
