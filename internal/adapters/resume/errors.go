package resume

import "errors"

// Sentinel kinds for extraction errors.
var (
	ErrEmptyPDF = errors.New("pdf has no pages")
	ErrNoText   = errors.New("no text extracted from any page")
)
