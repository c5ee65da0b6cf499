package classifier

import "errors"

// ErrInvalidArtifact is returned when an artifact is structurally invalid:
// unknown model type, inconsistent dimensions or unknown feature names.
var ErrInvalidArtifact = errors.New("invalid classifier artifact")
