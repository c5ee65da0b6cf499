// Package classifier loads the pre-fitted classifier artifact and applies it
// to feature vectors.
//
// An artifact is the exported form of a fitted (feature selector, scaler,
// model) triple. Classification applies the three stages in order:
//
//	select  – keep the subset of features the selector was fitted with
//	scale   – standardize (or min-max scale) the selected values
//	predict – run the binary model; label 1 means phishing
//
// The loaded Classifier is immutable and holds no per-call state, so one
// instance is shared by every concurrent evaluation without locking.
//
// # Artifact format
//
// Artifacts are JSON documents:
//
//	{
//	  "features": ["UsingIP", "LongURL", ...],     // input column order
//	  "selector": {"support": [true, false, ...]},  // or {"selected": ["UsingIP", ...]}
//	  "scaler":   {"type": "standard", "mean": [...], "scale": [...]},
//	  "model":    {"type": "logistic", "coef": [...], "intercept": -1.2}
//	}
//
// Supported model types are logistic, linear_svm, decision_tree,
// random_forest and stacking (base estimators feeding a final estimator).
package classifier
