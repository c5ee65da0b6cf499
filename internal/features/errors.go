package features

import "errors"

// ErrExtraction is returned when a feature vector cannot be produced,
// for example because the document could not be rendered or parsed.
// Partial vectors are never returned alongside it.
var ErrExtraction = errors.New("feature extraction failed")
