package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

// Scaler type names accepted in ScalerSpec.Type.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
	ScalerNone     = "none"
)

// Result is the outcome of classifying one vector.
type Result struct {
	// Verdict is the binary outcome.
	Verdict model.Verdict

	// Score is the positive-class score of the model.
	Score float64
}

// Classifier applies a fitted selector, scaler and model to feature vectors.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	// selected holds canonical feature indices in selector output order.
	selected []int

	scalerType string
	mean       []float64
	scale      []float64
	min        []float64

	est       estimator
	modelType string
}

// Load reads an artifact file and builds a Classifier from it.
// Every failure wraps config.ErrConfiguration.
func Load(path string) (*Classifier, error) {
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	c, err := New(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", config.ErrConfiguration, path, err)
	}
	return c, nil
}

// New validates an artifact and builds a Classifier.
// The artifact's input columns must be exactly the 16 feature names.
func New(a *Artifact) (*Classifier, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil artifact", ErrInvalidArtifact)
	}

	if err := checkInputColumns(a.Features); err != nil {
		return nil, err
	}

	selected, err := resolveSelection(a.Features, a.Selector)
	if err != nil {
		return nil, err
	}
	dim := len(selected)

	c := &Classifier{
		selected:   selected,
		scalerType: a.Scaler.Type,
		modelType:  a.Model.Type,
	}
	if c.scalerType == "" {
		c.scalerType = ScalerStandard
	}

	switch c.scalerType {
	case ScalerStandard:
		if len(a.Scaler.Mean) != 0 && len(a.Scaler.Mean) != dim {
			return nil, fmt.Errorf("%w: scaler mean has %d values, expected %d", ErrInvalidArtifact, len(a.Scaler.Mean), dim)
		}
		if len(a.Scaler.Scale) != 0 && len(a.Scaler.Scale) != dim {
			return nil, fmt.Errorf("%w: scaler scale has %d values, expected %d", ErrInvalidArtifact, len(a.Scaler.Scale), dim)
		}
		for i, s := range a.Scaler.Scale {
			if s == 0 {
				return nil, fmt.Errorf("%w: scaler scale[%d] is zero", ErrInvalidArtifact, i)
			}
		}
		c.mean = append([]float64(nil), a.Scaler.Mean...)
		c.scale = append([]float64(nil), a.Scaler.Scale...)
	case ScalerMinMax:
		if len(a.Scaler.Scale) != dim || len(a.Scaler.Min) != dim {
			return nil, fmt.Errorf("%w: minmax scaler needs %d scale and min values", ErrInvalidArtifact, dim)
		}
		c.scale = append([]float64(nil), a.Scaler.Scale...)
		c.min = append([]float64(nil), a.Scaler.Min...)
	case ScalerNone:
	default:
		return nil, fmt.Errorf("%w: unknown scaler type %q", ErrInvalidArtifact, a.Scaler.Type)
	}

	est, err := buildEstimator(a.Model, dim)
	if err != nil {
		return nil, err
	}
	c.est = est

	return c, nil
}

// checkInputColumns verifies the artifact was fitted on the full feature set.
func checkInputColumns(columns []string) error {
	if len(columns) != model.FeatureCount {
		return fmt.Errorf("%w: artifact has %d input features, expected %d",
			ErrInvalidArtifact, len(columns), model.FeatureCount)
	}
	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		if model.FeatureIndex(name) < 0 {
			return fmt.Errorf("%w: unknown input feature %q", ErrInvalidArtifact, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate input feature %q", ErrInvalidArtifact, name)
		}
		seen[name] = true
	}
	return nil
}

// resolveSelection maps the selector to canonical feature indices.
func resolveSelection(columns []string, sel SelectorSpec) ([]int, error) {
	out := make([]int, 0, len(columns))

	switch {
	case len(sel.Support) > 0:
		if len(sel.Support) != len(columns) {
			return nil, fmt.Errorf("%w: selector support has %d entries, expected %d",
				ErrInvalidArtifact, len(sel.Support), len(columns))
		}
		for i, keep := range sel.Support {
			if keep {
				out = append(out, model.FeatureIndex(columns[i]))
			}
		}
	case len(sel.Selected) > 0:
		for _, name := range sel.Selected {
			idx := model.FeatureIndex(name)
			if idx < 0 {
				return nil, fmt.Errorf("%w: selector keeps unknown feature %q", ErrInvalidArtifact, name)
			}
			out = append(out, idx)
		}
	default:
		// No selector: keep every input column in artifact order.
		for _, name := range columns {
			out = append(out, model.FeatureIndex(name))
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: selector keeps no features", ErrInvalidArtifact)
	}
	return out, nil
}

// Classify runs the vector through selection, scaling and the model.
func (c *Classifier) Classify(v model.FeatureVector) (Result, error) {
	x, err := c.transform(v)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Verdict: model.VerdictFromLabel(c.est.predict(x)),
		Score:   c.est.score(x),
	}, nil
}

// ClassifyMap validates a name/value feature map and classifies it.
// A map that does not carry exactly the 16 feature names yields
// model.ErrContractViolation.
func (c *Classifier) ClassifyMap(values map[string]int) (Result, error) {
	v, err := model.NewFeatureVector(values)
	if err != nil {
		return Result{}, err
	}
	return c.Classify(v)
}

// transform applies the selector and scaler.
func (c *Classifier) transform(v model.FeatureVector) (*mat.VecDense, error) {
	all := v.Values()
	if len(all) != model.FeatureCount {
		return nil, fmt.Errorf("%w: vector has %d values, expected %d",
			model.ErrContractViolation, len(all), model.FeatureCount)
	}

	x := make([]float64, len(c.selected))
	for i, idx := range c.selected {
		x[i] = all[idx]
	}

	switch c.scalerType {
	case ScalerStandard:
		if len(c.mean) > 0 {
			floats.Sub(x, c.mean)
		}
		if len(c.scale) > 0 {
			floats.Div(x, c.scale)
		}
	case ScalerMinMax:
		floats.Mul(x, c.scale)
		floats.Add(x, c.min)
	}

	return mat.NewVecDense(len(x), x), nil
}

// SelectedFeatures returns the names of the features the model uses, in order.
func (c *Classifier) SelectedFeatures() []string {
	out := make([]string, len(c.selected))
	for i, idx := range c.selected {
		out[i] = model.FeatureNames[idx]
	}
	return out
}

// ModelType returns the type of the top-level model.
func (c *Classifier) ModelType() string {
	return c.modelType
}
