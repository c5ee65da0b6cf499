package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

// linearArtifact returns an artifact with a logistic model over all 16
// features, no scaling, and a single strongly positive weight on UsingIP.
func linearArtifact() *Artifact {
	coef := make([]float64, model.FeatureCount)
	coef[model.FeatureIndex(model.FeatureUsingIP)] = 10
	return &Artifact{
		Features: append([]string(nil), model.FeatureNames...),
		Scaler:   ScalerSpec{Type: ScalerNone},
		Model: ModelSpec{
			Type:      ModelLogistic,
			Coef:      coef,
			Intercept: -5,
		},
	}
}

func TestClassifierLogistic(t *testing.T) {
	t.Parallel()

	c, err := New(linearArtifact())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("positive weight flags phishing", func(t *testing.T) {
		t.Parallel()

		res, err := c.Classify(model.FeatureVector{UsingIP: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictPhishing {
			t.Errorf("expected phishing, got %v (score %v)", res.Verdict, res.Score)
		}
		if res.Score <= 0.5 || res.Score >= 1 {
			t.Errorf("expected probability in (0.5, 1), got %v", res.Score)
		}
	})

	t.Run("zero vector is benign", func(t *testing.T) {
		t.Parallel()

		res, err := c.Classify(model.FeatureVector{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictBenign {
			t.Errorf("expected benign, got %v", res.Verdict)
		}
	})
}

func TestClassifierSelectorAndScaler(t *testing.T) {
	t.Parallel()

	a := &Artifact{
		Features: append([]string(nil), model.FeatureNames...),
		Selector: SelectorSpec{Selected: []string{model.FeatureHTTPS, model.FeatureSubDomains}},
		Scaler: ScalerSpec{
			Type:  ScalerStandard,
			Mean:  []float64{0.5, 1},
			Scale: []float64{0.5, 1},
		},
		Model: ModelSpec{
			Type: ModelLinearSVM,
			// Non-HTTPS pages with many subdomains score positive.
			Coef:      []float64{-1, 1},
			Intercept: 0,
		},
	}

	c, err := New(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := c.SelectedFeatures()
	if len(names) != 2 || names[0] != model.FeatureHTTPS || names[1] != model.FeatureSubDomains {
		t.Fatalf("unexpected selected features: %v", names)
	}

	// HTTPS=0 -> (0-0.5)/0.5 = -1; SubDomains=3 -> (3-1)/1 = 2; decision = 1 + 2 = 3.
	res, err := c.Classify(model.FeatureVector{HTTPS: 0, SubDomains: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != model.VerdictPhishing || res.Score != 3 {
		t.Errorf("expected phishing with score 3, got %v with %v", res.Verdict, res.Score)
	}

	// HTTPS=1 -> 1; SubDomains=0 -> -1; decision = -1 - 1 = -2.
	res, err = c.Classify(model.FeatureVector{HTTPS: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != model.VerdictBenign || res.Score != -2 {
		t.Errorf("expected benign with score -2, got %v with %v", res.Verdict, res.Score)
	}
}

func TestClassifierTrees(t *testing.T) {
	t.Parallel()

	// Split on the first selected feature (Favicon): no favicon -> phishing leaf.
	stump := TreeSpec{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{0, -2, -2},
		Threshold:     []float64{0.5, -2, -2},
		Value:         [][]float64{{10, 10}, {1, 9}, {9, 1}},
	}
	base := func(spec ModelSpec) *Artifact {
		return &Artifact{
			Features: append([]string(nil), model.FeatureNames...),
			Selector: SelectorSpec{Selected: []string{model.FeatureFavicon}},
			Scaler:   ScalerSpec{Type: ScalerNone},
			Model:    spec,
		}
	}

	t.Run("decision tree", func(t *testing.T) {
		t.Parallel()

		c, err := New(base(ModelSpec{Type: ModelDecisionTree, Tree: &stump}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res, err := c.Classify(model.FeatureVector{Favicon: 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictPhishing || res.Score != 0.9 {
			t.Errorf("expected phishing with 0.9, got %v with %v", res.Verdict, res.Score)
		}
	})

	t.Run("random forest averages trees", func(t *testing.T) {
		t.Parallel()

		c, err := New(base(ModelSpec{Type: ModelRandomForest, Trees: []TreeSpec{stump, stump}}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res, err := c.Classify(model.FeatureVector{Favicon: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictBenign {
			t.Errorf("expected benign, got %v", res.Verdict)
		}
	})

	t.Run("invalid children rejected", func(t *testing.T) {
		t.Parallel()

		bad := stump
		bad.ChildrenLeft = []int{0, -1, -1}
		_, err := New(base(ModelSpec{Type: ModelDecisionTree, Tree: &bad}))
		if !errors.Is(err, ErrInvalidArtifact) {
			t.Errorf("expected ErrInvalidArtifact, got %v", err)
		}
	})
}

func TestNewRejectsInvalidArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{name: "missing input feature", mutate: func(a *Artifact) { a.Features = a.Features[:15] }},
		{name: "unknown input feature", mutate: func(a *Artifact) { a.Features[0] = "AgeOfDomain" }},
		{name: "duplicate input feature", mutate: func(a *Artifact) { a.Features[1] = a.Features[0] }},
		{name: "support length mismatch", mutate: func(a *Artifact) { a.Selector.Support = []bool{true} }},
		{name: "selector keeps unknown", mutate: func(a *Artifact) { a.Selector.Selected = []string{"Nope"} }},
		{name: "coefficient mismatch", mutate: func(a *Artifact) { a.Model.Coef = a.Model.Coef[:3] }},
		{name: "unknown model", mutate: func(a *Artifact) { a.Model.Type = "xgboost" }},
		{name: "unknown scaler", mutate: func(a *Artifact) { a.Scaler.Type = "robust" }},
		{name: "zero scale", mutate: func(a *Artifact) {
			a.Scaler = ScalerSpec{Type: ScalerStandard, Scale: make([]float64, model.FeatureCount)}
		}},
		{name: "stacking without final", mutate: func(a *Artifact) {
			a.Model = ModelSpec{Type: ModelStacking, Estimators: []ModelSpec{a.Model}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := linearArtifact()
			tt.mutate(a)
			if _, err := New(a); !errors.Is(err, ErrInvalidArtifact) {
				t.Errorf("expected ErrInvalidArtifact, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("loads stacked artifact", func(t *testing.T) {
		t.Parallel()

		c, err := Load(filepath.Join("testdata", "model.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.ModelType() != ModelStacking {
			t.Errorf("expected stacking model, got %q", c.ModelType())
		}
		if len(c.SelectedFeatures()) != 14 {
			t.Errorf("expected 14 selected features, got %d", len(c.SelectedFeatures()))
		}

		phishy := model.FeatureVector{
			UsingIP: 1, LongURL: 1, SymbolAt: 1, Redirecting: 1, PrefixSuffix: 1,
			SubDomains: 3, NonStdPort: 1, RequestURL: 1, AnchorURL: 1,
			LinksInScriptTags: 1, ServerFormHandler: 1,
		}
		res, err := c.Classify(phishy)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictPhishing {
			t.Errorf("expected phishing, got %v (score %v)", res.Verdict, res.Score)
		}

		benign := model.FeatureVector{HTTPS: 1, Favicon: 1, SubDomains: 1}
		res, err = c.Classify(benign)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Verdict != model.VerdictBenign {
			t.Errorf("expected benign, got %v (score %v)", res.Verdict, res.Score)
		}
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		if !errors.Is(err, config.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("malformed file is a configuration error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "model.json")
		if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		_, err := Load(path)
		if !errors.Is(err, config.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("invalid artifact is a configuration error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "model.json")
		if err := os.WriteFile(path, []byte(`{"features":["UsingIP"],"model":{"type":"logistic"}}`), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		_, err := Load(path)
		if !errors.Is(err, config.ErrConfiguration) || !errors.Is(err, ErrInvalidArtifact) {
			t.Errorf("expected ErrConfiguration wrapping ErrInvalidArtifact, got %v", err)
		}
	})

	t.Run("empty path is a configuration error", func(t *testing.T) {
		t.Parallel()

		if _, err := Load(""); !errors.Is(err, config.ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestClassifyMapContract(t *testing.T) {
	t.Parallel()

	c, err := New(linearArtifact())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	full := model.FeatureVector{UsingIP: 1}.Map()
	if _, err := c.ClassifyMap(full); err != nil {
		t.Errorf("expected full map to classify, got %v", err)
	}

	delete(full, model.FeatureHTTPS)
	if _, err := c.ClassifyMap(full); !errors.Is(err, model.ErrContractViolation) {
		t.Errorf("expected ErrContractViolation, got %v", err)
	}
}

func TestClassifierConcurrentUse(t *testing.T) {
	t.Parallel()

	c, err := Load(filepath.Join("testdata", "model.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want, err := c.Classify(model.FeatureVector{UsingIP: 1, AnchorURL: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Classify(model.FeatureVector{UsingIP: 1, AnchorURL: 1})
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("concurrent classification diverged")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
