package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nao1215/phishguard/internal/config"
)

// Artifact is the serialized (selector, scaler, model) triple.
type Artifact struct {
	// Features is the column order the selector was fitted on.
	Features []string `json:"features"`

	// Selector picks the subset of Features fed to the scaler.
	Selector SelectorSpec `json:"selector"`

	// Scaler holds the fitted scaling parameters for the selected features.
	Scaler ScalerSpec `json:"scaler"`

	// Model is the fitted binary estimator.
	Model ModelSpec `json:"model"`
}

// SelectorSpec describes a fitted feature selector.
// Exactly one of Support and Selected is used; Support wins if both are set.
type SelectorSpec struct {
	// Support is a boolean mask over Artifact.Features.
	Support []bool `json:"support,omitempty"`

	// Selected lists the kept feature names in output order.
	Selected []string `json:"selected,omitempty"`
}

// ScalerSpec describes a fitted scaler.
type ScalerSpec struct {
	// Type is "standard" (default), "minmax" or "none".
	Type string `json:"type,omitempty"`

	// Mean is subtracted before dividing by Scale (standard scaler).
	// Empty means no centering.
	Mean []float64 `json:"mean,omitempty"`

	// Scale divides (standard) or multiplies (minmax) each value.
	// Empty means unit scale.
	Scale []float64 `json:"scale,omitempty"`

	// Min is added after multiplying by Scale (minmax scaler).
	Min []float64 `json:"min,omitempty"`
}

// ModelSpec describes a fitted estimator. Which fields are used depends on Type.
type ModelSpec struct {
	// Type is one of logistic, linear_svm, decision_tree, random_forest, stacking.
	Type string `json:"type"`

	// Coef and Intercept define linear models.
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`

	// Threshold overrides the positive-class probability cut-off of a
	// logistic model. Zero means the decision boundary (probability 0.5).
	Threshold float64 `json:"threshold,omitempty"`

	// Tree is used by decision_tree.
	Tree *TreeSpec `json:"tree,omitempty"`

	// Trees are used by random_forest.
	Trees []TreeSpec `json:"trees,omitempty"`

	// Estimators and Final are used by stacking.
	Estimators []ModelSpec `json:"estimators,omitempty"`
	Final      *ModelSpec  `json:"final,omitempty"`

	// Passthrough appends the scaled features to the stacked outputs.
	Passthrough bool `json:"passthrough,omitempty"`
}

// TreeSpec is a fitted binary decision tree in array form.
// Node i is a leaf when ChildrenLeft[i] is -1.
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// LoadArtifact reads an artifact from a JSON file.
// Any read, decode or validation failure wraps config.ErrConfiguration so the
// service refuses to start without a usable model.
func LoadArtifact(path string) (*Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: classifier artifact path is empty", config.ErrConfiguration)
	}

	data, err := os.ReadFile(path) //nolint:gosec // Artifact path comes from trusted configuration
	if err != nil {
		return nil, fmt.Errorf("%w: read classifier artifact: %w", config.ErrConfiguration, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode classifier artifact %s: %w", config.ErrConfiguration, path, err)
	}

	return &a, nil
}
