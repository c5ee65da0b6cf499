// Package model defines the core data structures used throughout PhishGuard.
//
// This package contains the following main types:
//   - FeatureVector: The fixed 16-feature description of a URL and its document
//   - Verdict: The binary benign/phishing outcome of classification
//   - Evaluation: The working record of one session's evaluation in a sweep
//   - VerdictRecord: The persisted form of a verdict
//
// Multiple packages (features, classifier, pipeline, dispatch, database)
// share these types, so they live in their own package to avoid import cycles.
package model
