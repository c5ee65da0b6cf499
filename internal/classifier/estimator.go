package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Model type names accepted in ModelSpec.Type.
const (
	ModelLogistic     = "logistic"
	ModelLinearSVM    = "linear_svm"
	ModelDecisionTree = "decision_tree"
	ModelRandomForest = "random_forest"
	ModelStacking     = "stacking"
)

// estimator is a fitted binary model over a dense input vector.
type estimator interface {
	// predict returns the class label (0 or 1).
	predict(x *mat.VecDense) int

	// score returns the positive-class score: a probability for
	// probabilistic models, the signed decision value otherwise.
	score(x *mat.VecDense) float64
}

// buildEstimator validates spec against the input dimension and returns the
// corresponding estimator.
func buildEstimator(spec ModelSpec, dim int) (estimator, error) {
	switch spec.Type {
	case ModelLogistic, ModelLinearSVM:
		if len(spec.Coef) != dim {
			return nil, fmt.Errorf("%w: %s model has %d coefficients, expected %d",
				ErrInvalidArtifact, spec.Type, len(spec.Coef), dim)
		}
		lin := &linearModel{
			coef:      mat.NewVecDense(dim, append([]float64(nil), spec.Coef...)),
			intercept: spec.Intercept,
			logistic:  spec.Type == ModelLogistic,
			threshold: spec.Threshold,
		}
		if lin.threshold < 0 || lin.threshold >= 1 {
			return nil, fmt.Errorf("%w: logistic threshold %v out of range [0,1)", ErrInvalidArtifact, spec.Threshold)
		}
		return lin, nil

	case ModelDecisionTree:
		if spec.Tree == nil {
			return nil, fmt.Errorf("%w: decision_tree model has no tree", ErrInvalidArtifact)
		}
		t, err := newTree(*spec.Tree, dim)
		if err != nil {
			return nil, err
		}
		return t, nil

	case ModelRandomForest:
		if len(spec.Trees) == 0 {
			return nil, fmt.Errorf("%w: random_forest model has no trees", ErrInvalidArtifact)
		}
		f := &forest{trees: make([]*tree, 0, len(spec.Trees))}
		for i, ts := range spec.Trees {
			t, err := newTree(ts, dim)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
			f.trees = append(f.trees, t)
		}
		return f, nil

	case ModelStacking:
		if len(spec.Estimators) == 0 || spec.Final == nil {
			return nil, fmt.Errorf("%w: stacking model needs estimators and a final estimator", ErrInvalidArtifact)
		}
		s := &stack{passthrough: spec.Passthrough, base: make([]estimator, 0, len(spec.Estimators))}
		for i, es := range spec.Estimators {
			e, err := buildEstimator(es, dim)
			if err != nil {
				return nil, fmt.Errorf("estimator %d: %w", i, err)
			}
			s.base = append(s.base, e)
		}
		finalDim := len(s.base)
		if s.passthrough {
			finalDim += dim
		}
		final, err := buildEstimator(*spec.Final, finalDim)
		if err != nil {
			return nil, fmt.Errorf("final estimator: %w", err)
		}
		s.final = final
		return s, nil

	default:
		return nil, fmt.Errorf("%w: unknown model type %q", ErrInvalidArtifact, spec.Type)
	}
}

// linearModel is a logistic regression or a linear SVM.
type linearModel struct {
	coef      *mat.VecDense
	intercept float64
	logistic  bool
	threshold float64
}

func (m *linearModel) decision(x *mat.VecDense) float64 {
	return mat.Dot(m.coef, x) + m.intercept
}

func (m *linearModel) score(x *mat.VecDense) float64 {
	d := m.decision(x)
	if m.logistic {
		return sigmoid(d)
	}
	return d
}

func (m *linearModel) predict(x *mat.VecDense) int {
	if m.logistic && m.threshold > 0 {
		if sigmoid(m.decision(x)) >= m.threshold {
			return 1
		}
		return 0
	}
	if m.decision(x) > 0 {
		return 1
	}
	return 0
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// tree is a fitted binary decision tree.
type tree struct {
	spec TreeSpec
}

func newTree(spec TreeSpec, dim int) (*tree, error) {
	n := len(spec.ChildrenLeft)
	if n == 0 || len(spec.ChildrenRight) != n || len(spec.Feature) != n ||
		len(spec.Threshold) != n || len(spec.Value) != n {
		return nil, fmt.Errorf("%w: decision tree arrays have inconsistent lengths", ErrInvalidArtifact)
	}
	for i := 0; i < n; i++ {
		left, right := spec.ChildrenLeft[i], spec.ChildrenRight[i]
		if left == -1 {
			if len(spec.Value[i]) != 2 {
				return nil, fmt.Errorf("%w: leaf %d must hold two class values", ErrInvalidArtifact, i)
			}
			continue
		}
		// Children must come after their parent, which also rules out cycles.
		if left <= i || left >= n || right <= i || right >= n {
			return nil, fmt.Errorf("%w: node %d has invalid children", ErrInvalidArtifact, i)
		}
		if spec.Feature[i] < 0 || spec.Feature[i] >= dim {
			return nil, fmt.Errorf("%w: node %d splits on feature %d of %d",
				ErrInvalidArtifact, i, spec.Feature[i], dim)
		}
	}
	return &tree{spec: spec}, nil
}

// proba returns the positive-class probability of the leaf x falls into.
func (t *tree) proba(x *mat.VecDense) float64 {
	node := 0
	for t.spec.ChildrenLeft[node] != -1 {
		if x.AtVec(t.spec.Feature[node]) <= t.spec.Threshold[node] {
			node = t.spec.ChildrenLeft[node]
		} else {
			node = t.spec.ChildrenRight[node]
		}
	}
	value := t.spec.Value[node]
	total := floats.Sum(value)
	if total == 0 {
		return 0
	}
	return value[1] / total
}

func (t *tree) score(x *mat.VecDense) float64 {
	return t.proba(x)
}

func (t *tree) predict(x *mat.VecDense) int {
	if t.proba(x) > 0.5 {
		return 1
	}
	return 0
}

// forest averages the probabilities of its trees.
type forest struct {
	trees []*tree
}

func (f *forest) score(x *mat.VecDense) float64 {
	probs := make([]float64, len(f.trees))
	for i, t := range f.trees {
		probs[i] = t.proba(x)
	}
	return floats.Sum(probs) / float64(len(probs))
}

func (f *forest) predict(x *mat.VecDense) int {
	if f.score(x) > 0.5 {
		return 1
	}
	return 0
}

// stack feeds the scores of its base estimators to a final estimator.
type stack struct {
	base        []estimator
	final       estimator
	passthrough bool
}

func (s *stack) meta(x *mat.VecDense) *mat.VecDense {
	n := len(s.base)
	if s.passthrough {
		n += x.Len()
	}
	out := make([]float64, 0, n)
	for _, e := range s.base {
		out = append(out, e.score(x))
	}
	if s.passthrough {
		for i := 0; i < x.Len(); i++ {
			out = append(out, x.AtVec(i))
		}
	}
	return mat.NewVecDense(n, out)
}

func (s *stack) score(x *mat.VecDense) float64 {
	return s.final.score(s.meta(x))
}

func (s *stack) predict(x *mat.VecDense) int {
	return s.final.predict(s.meta(x))
}
