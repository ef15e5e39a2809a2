// Package classifier adapts the frozen fraud model for the scoring
// pipeline. The model is a logistic regression with a standard scaler,
// exported to a JSON artifact by the training pipeline; it is loaded
// once at process start and never changes afterwards.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/opensource-finance/kestrel/internal/features"
)

var (
	// ErrInvalidArtifact marks a model artifact that cannot be used.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrNotFinite marks a scoring call that produced NaN or Inf,
	// usually from non-finite input values.
	ErrNotFinite = errors.New("classifier produced non-finite score")
)

// Verdict is the classifier's raw output for one transaction.
type Verdict struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// Classifier scores an engineered feature vector. Implementations must
// be safe for concurrent use and deterministic: the same vector always
// yields the same verdict.
type Classifier interface {
	// FeatureNames returns the declared feature set, in model order.
	FeatureNames() []string

	// Version identifies the loaded model artifact.
	Version() string

	// Score projects the vector onto the declared feature set (missing
	// features default to 0, extras are dropped) and returns the fraud
	// verdict.
	Score(vec *features.Vector) (Verdict, error)
}

// artifact is the JSON layout written by the training pipeline.
type artifact struct {
	Version   string             `json:"version"`
	Features  []string           `json:"features"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
	Scaler    scalerArtifact     `json:"scaler"`
}

type scalerArtifact struct {
	Mean map[string]float64 `json:"mean"`
	Std  map[string]float64 `json:"std"`
}

// Model is a logistic regression over standardized features.
type Model struct {
	version   string
	feats     []string
	intercept float64
	weights   []float64
	mean      []float64
	std       []float64
}

// Load reads and validates a model artifact from disk. Callers treat
// any error as fatal: a process without a model cannot score.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	return New(a.Version, a.Features, a.Intercept, a.Weights, a.Scaler.Mean, a.Scaler.Std)
}

// New builds a model from its parts, validating that every declared
// feature has a weight and scaler statistics.
func New(version string, feats []string, intercept float64, weights, mean, std map[string]float64) (*Model, error) {
	if len(feats) == 0 {
		return nil, fmt.Errorf("%w: empty feature list", ErrInvalidArtifact)
	}
	if version == "" {
		version = "1.0.0"
	}

	m := &Model{
		version:   version,
		feats:     make([]string, len(feats)),
		intercept: intercept,
		weights:   make([]float64, len(feats)),
		mean:      make([]float64, len(feats)),
		std:       make([]float64, len(feats)),
	}
	copy(m.feats, feats)

	for i, f := range feats {
		w, ok := weights[f]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q has no weight", ErrInvalidArtifact, f)
		}
		mu, ok := mean[f]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q has no scaler mean", ErrInvalidArtifact, f)
		}
		sd, ok := std[f]
		if !ok {
			return nil, fmt.Errorf("%w: feature %q has no scaler std", ErrInvalidArtifact, f)
		}
		if sd <= 0 {
			return nil, fmt.Errorf("%w: feature %q has non-positive scaler std", ErrInvalidArtifact, f)
		}
		m.weights[i] = w
		m.mean[i] = mu
		m.std[i] = sd
	}

	return m, nil
}

// FeatureNames returns the declared feature set, in model order.
func (m *Model) FeatureNames() []string {
	out := make([]string, len(m.feats))
	copy(out, m.feats)
	return out
}

// Version identifies the loaded artifact.
func (m *Model) Version() string { return m.version }

// Score standardizes each declared feature, applies the logistic
// weights, and returns the fraud-class probability with its label.
// The label flips at probability > 0.5.
func (m *Model) Score(vec *features.Vector) (Verdict, error) {
	if vec == nil {
		return Verdict{}, errors.New("nil feature vector")
	}

	z := m.intercept
	for i, f := range m.feats {
		raw := vec.Value(f)
		z += m.weights[i] * ((raw - m.mean[i]) / m.std[i])
	}

	prob := sigmoid(z)
	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		return Verdict{}, ErrNotFinite
	}

	label := 0
	if prob > 0.5 {
		label = 1
	}
	return Verdict{Label: label, Probability: prob}, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
