// Package contract defines the request/response contract of the iris inference
// service. It validates inbound feature payloads, delegates scoring to the bound
// model, and shapes the structured prediction, health and contract responses.
//
// The package is stateless per request. The only state it reads is the Binding
// established once at process start, which is never mutated afterwards.
package contract

// Feature names in the order the scorer expects them.
const (
	FieldSepalLength = "sepal_length"
	FieldSepalWidth  = "sepal_width"
	FieldPetalLength = "petal_length"
	FieldPetalWidth  = "petal_width"
)

// Feature bounds, inclusive.
const (
	MinFeatureValue = 0.0
	MaxFeatureValue = 10.0
)

// FeatureNames lists the four required measurements in scoring order.
var FeatureNames = []string{FieldSepalLength, FieldSepalWidth, FieldPetalLength, FieldPetalWidth}

// FeatureVector holds one validated set of measurements in centimetres.
type FeatureVector struct {
	SepalLength float64 `json:"sepal_length"`
	SepalWidth  float64 `json:"sepal_width"`
	PetalLength float64 `json:"petal_length"`
	PetalWidth  float64 `json:"petal_width"`
}

// Values returns the measurements ordered as FeatureNames.
func (f FeatureVector) Values() []float64 {
	return []float64{f.SepalLength, f.SepalWidth, f.PetalLength, f.PetalWidth}
}

// PredictionRequest is the body accepted by the predict operation.
type PredictionRequest struct {
	Features FeatureVector `json:"features"`
}

// PredictionResult is returned for every successful prediction.
type PredictionResult struct {
	ClassIndex   int     `json:"prediction"`
	ClassLabel   string  `json:"prediction_label"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Status values reported by Health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthStatus reflects whether a model was bound at startup.
type HealthStatus struct {
	Status       string  `json:"status"`
	ModelLoaded  bool    `json:"model_loaded"`
	ModelVersion *string `json:"model_version"`
	ModelSource  string  `json:"model_source,omitempty"`
}

// Healthy reports whether the status is StatusHealthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == StatusHealthy
}
