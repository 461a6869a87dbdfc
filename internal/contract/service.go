package contract

import (
	"context"
	"fmt"
	"math"
	"time"

	"iris-service/internal/common"

	"github.com/rs/zerolog/log"
)

// Scorer is the model provider's scoring operation. It returns the predicted
// class index and the per-class probability distribution.
type Scorer interface {
	Score(values []float64) (int, []float64, error)
}

// Binding is the model selected at process start. It is built once before any
// request is accepted and never modified afterwards.
type Binding struct {
	Scorer  Scorer
	Labels  []string // Labels[i] names class index i.
	Version string
	Source  string
}

// MetricsInterface defines metrics methods needed by the service
type MetricsInterface interface {
	PredictionInc(label string)
	ValidationFailureInc()
	PredictionErrorInc(kind string)
	PredictionLatencyObserve(seconds float64)
	ConfidenceObserve(confidence float64)
	ModelLoadedSet(loaded bool)
}

// Error kinds reported through PredictionErrorInc.
const (
	ErrorKindUnavailable   = "model_unavailable"
	ErrorKindInconsistency = "internal_inconsistency"
	ErrorKindScorer        = "scorer"
)

// Service is the contract layer. It is safe for concurrent use.
type Service struct {
	binding *Binding
	health  HealthStatus
	metrics MetricsInterface
}

// NewService creates a service over binding. A nil binding means the model
// failed to load; predict then fails with ErrModelUnavailable for the lifetime
// of the process. metrics may be nil.
func NewService(binding *Binding, metrics MetricsInterface) *Service {
	s := &Service{binding: binding, metrics: metrics}

	if binding != nil && binding.Scorer != nil {
		version := binding.Version
		s.health = HealthStatus{
			Status:       StatusHealthy,
			ModelLoaded:  true,
			ModelVersion: &version,
			ModelSource:  binding.Source,
		}
	} else {
		s.binding = nil
		s.health = HealthStatus{Status: StatusDegraded}
	}

	if metrics != nil {
		metrics.ModelLoadedSet(s.health.ModelLoaded)
	}

	return s
}

// Health returns the process-wide health status.
func (s *Service) Health() HealthStatus {
	h := s.health
	if h.ModelVersion != nil {
		v := *h.ModelVersion
		h.ModelVersion = &v
	}
	return h
}

// ContractJSON returns the encoded contract description. The bytes are shared
// between calls and must not be modified.
func (s *Service) ContractJSON() []byte {
	return DescriptionJSON()
}

// ValidationFailed records a rejected request.
func (s *Service) ValidationFailed(err error) {
	if s.metrics != nil {
		s.metrics.ValidationFailureInc()
	}
	log.Debug().Err(err).Msg("request rejected")
}

// Predict scores a validated feature vector and shapes the result.
func (s *Service) Predict(ctx context.Context, features FeatureVector) (PredictionResult, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return PredictionResult{}, err
	}

	// Vectors built in Go never passed through Validate.
	if err := features.Check(); err != nil {
		s.ValidationFailed(err)
		return PredictionResult{}, err
	}

	if s.binding == nil {
		s.recordError(ErrorKindUnavailable)
		return PredictionResult{}, ErrModelUnavailable
	}

	index, probs, err := s.binding.Scorer.Score(features.Values())
	if err != nil {
		s.recordError(ErrorKindScorer)
		log.Error().Err(err).Interface("features", features).Msg("scoring failed")
		return PredictionResult{}, fmt.Errorf("score: %w", err)
	}

	result, err := shape(index, probs, s.binding)
	if err != nil {
		s.recordError(ErrorKindInconsistency)
		log.Error().Err(err).Int("class_index", index).Int("prob_count", len(probs)).
			Msg("scorer output rejected")
		return PredictionResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PredictionInc(result.ClassLabel)
		s.metrics.ConfidenceObserve(result.Confidence)
	}

	log.Info().
		Str("label", result.ClassLabel).
		Int("class", result.ClassIndex).
		Float64("confidence", result.Confidence).
		Str("model_version", result.ModelVersion).
		Msg("prediction")

	return result, nil
}

func (s *Service) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.PredictionErrorInc(kind)
	}
}

// shape maps scorer output onto the bound label list.
func shape(index int, probs []float64, b *Binding) (PredictionResult, error) {
	if len(probs) != len(b.Labels) {
		return PredictionResult{}, inconsistency("got %d probabilities for %d labels", len(probs), len(b.Labels))
	}
	if index < 0 || index >= len(b.Labels) {
		return PredictionResult{}, inconsistency("class index %d outside label set of %d", index, len(b.Labels))
	}

	best, sum := 0, 0.0
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return PredictionResult{}, inconsistency("probability %d is %v", i, p)
		}
		if p > probs[best] {
			best = i
		}
		sum += p
	}
	if math.Abs(sum-1) > common.ProbabilityEpsilon {
		return PredictionResult{}, inconsistency("probabilities sum to %v", sum)
	}
	if probs[index] < probs[best] {
		return PredictionResult{}, inconsistency("class index %d is not the most probable class %d", index, best)
	}

	return PredictionResult{
		ClassIndex:   index,
		ClassLabel:   b.Labels[index],
		Confidence:   probs[best],
		ModelVersion: b.Version,
	}, nil
}
