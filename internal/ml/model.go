package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// KindGaussianNB identifies a Gaussian naive Bayes artifact.
const KindGaussianNB = "gaussian_nb"

// DefaultVarSmoothing matches the usual GaussianNB default.
const DefaultVarSmoothing = 1e-9

var ErrInvalidModel = errors.New("invalid model")

// GaussianNB is a Gaussian naive Bayes classifier. Means and Variances are
// indexed [class][feature]. Labels[i] names class i.
type GaussianNB struct {
	Kind         string      `json:"kind"`
	Version      string      `json:"version,omitempty"`
	Features     []string    `json:"features"`
	Labels       []string    `json:"labels"`
	Priors       []float64   `json:"priors"`
	Means        [][]float64 `json:"means"`
	Variances    [][]float64 `json:"variances"`
	VarSmoothing float64     `json:"var_smoothing,omitempty"`
}

// Fit estimates class priors, means and population variances from samples.
// y holds class indexes into labels. Every variance is widened by
// varSmoothing times the largest per-feature variance of x.
func Fit(x [][]float64, y []int, features, labels []string, varSmoothing float64) (*GaussianNB, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidModel)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d samples but %d targets", ErrInvalidModel, len(x), len(y))
	}
	nFeatures := len(features)
	nClasses := len(labels)

	counts := make([]int, nClasses)
	sums := newMatrix(nClasses, nFeatures)
	for i, row := range x {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: sample %d has %d features, want %d", ErrInvalidModel, i, len(row), nFeatures)
		}
		c := y[i]
		if c < 0 || c >= nClasses {
			return nil, fmt.Errorf("%w: sample %d has class %d", ErrInvalidModel, i, c)
		}
		counts[c]++
		for j, v := range row {
			sums[c][j] += v
		}
	}

	m := &GaussianNB{
		Kind:         KindGaussianNB,
		Features:     append([]string(nil), features...),
		Labels:       append([]string(nil), labels...),
		Priors:       make([]float64, nClasses),
		Means:        newMatrix(nClasses, nFeatures),
		Variances:    newMatrix(nClasses, nFeatures),
		VarSmoothing: varSmoothing,
	}

	for c := range labels {
		if counts[c] == 0 {
			return nil, fmt.Errorf("%w: class %q has no samples", ErrInvalidModel, labels[c])
		}
		m.Priors[c] = float64(counts[c]) / float64(len(x))
		for j := range features {
			m.Means[c][j] = sums[c][j] / float64(counts[c])
		}
	}

	for i, row := range x {
		c := y[i]
		for j, v := range row {
			d := v - m.Means[c][j]
			m.Variances[c][j] += d * d
		}
	}
	for c := range labels {
		for j := range features {
			m.Variances[c][j] /= float64(counts[c])
		}
	}

	epsilon := varSmoothing * maxFeatureVariance(x, nFeatures)
	for c := range labels {
		for j := range features {
			m.Variances[c][j] += epsilon
		}
	}

	return m, m.validate()
}

// Score returns the most likely class and the posterior distribution over
// all classes. Posteriors are normalised in log space.
func (m *GaussianNB) Score(values []float64) (int, []float64, error) {
	if len(values) != len(m.Features) {
		return 0, nil, fmt.Errorf("expected %d feature values, got %d", len(m.Features), len(values))
	}

	logJoint := make([]float64, len(m.Labels))
	best := 0
	for c := range m.Labels {
		lj := math.Log(m.Priors[c])
		for j, v := range values {
			variance := m.Variances[c][j]
			d := v - m.Means[c][j]
			lj -= 0.5*math.Log(2*math.Pi*variance) + d*d/(2*variance)
		}
		logJoint[c] = lj
		if lj > logJoint[best] {
			best = c
		}
	}

	// log-sum-exp
	maxLJ := logJoint[best]
	var total float64
	for _, lj := range logJoint {
		total += math.Exp(lj - maxLJ)
	}
	logNorm := maxLJ + math.Log(total)

	probs := make([]float64, len(logJoint))
	for c, lj := range logJoint {
		probs[c] = math.Exp(lj - logNorm)
	}
	return best, probs, nil
}

func (m *GaussianNB) validate() error {
	if m.Kind != KindGaussianNB {
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidModel, m.Kind)
	}
	nClasses, nFeatures := len(m.Labels), len(m.Features)
	if nClasses < 2 {
		return fmt.Errorf("%w: need at least 2 labels, got %d", ErrInvalidModel, nClasses)
	}
	if nFeatures == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidModel)
	}
	if len(m.Priors) != nClasses || len(m.Means) != nClasses || len(m.Variances) != nClasses {
		return fmt.Errorf("%w: priors, means and variances must have one entry per label", ErrInvalidModel)
	}

	var priorSum float64
	for c := 0; c < nClasses; c++ {
		p := m.Priors[c]
		if !(p > 0 && p <= 1) {
			return fmt.Errorf("%w: prior %d is %v", ErrInvalidModel, c, p)
		}
		priorSum += p
		if len(m.Means[c]) != nFeatures || len(m.Variances[c]) != nFeatures {
			return fmt.Errorf("%w: class %d needs %d means and variances", ErrInvalidModel, c, nFeatures)
		}
		for j := 0; j < nFeatures; j++ {
			if math.IsNaN(m.Means[c][j]) || math.IsInf(m.Means[c][j], 0) {
				return fmt.Errorf("%w: mean [%d][%d] is not finite", ErrInvalidModel, c, j)
			}
			if v := m.Variances[c][j]; !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: variance [%d][%d] must be positive, got %v", ErrInvalidModel, c, j, v)
			}
		}
	}
	if math.Abs(priorSum-1) > 1e-6 {
		return fmt.Errorf("%w: priors sum to %v", ErrInvalidModel, priorSum)
	}
	return nil
}

// Marshal encodes the model as an artifact document.
func (m *GaussianNB) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalModel decodes and validates an artifact document.
func UnmarshalModel(data []byte) (*GaussianNB, error) {
	var m GaussianNB
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the artifact to path.
func (m *GaussianNB) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFile reads an artifact from path.
func LoadFile(path string) (*GaussianNB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return UnmarshalModel(data)
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func maxFeatureVariance(x [][]float64, nFeatures int) float64 {
	n := float64(len(x))
	var maxVar float64
	for j := 0; j < nFeatures; j++ {
		var sum, sq float64
		for _, row := range x {
			sum += row[j]
		}
		mean := sum / n
		for _, row := range x {
			d := row[j] - mean
			sq += d * d
		}
		if v := sq / n; v > maxVar {
			maxVar = v
		}
	}
	return maxVar
}
