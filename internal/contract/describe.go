package contract

import "encoding/json"

// Schema is a JSON-Schema-like description of one object or property.
type Schema struct {
	Type        string             `json:"type"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Example     any                `json:"example,omitempty"`
}

// ContractDescription pairs the input and output schemas of the predict operation.
type ContractDescription struct {
	InputSchema  *Schema `json:"input_schema"`
	OutputSchema *Schema `json:"output_schema"`
}

// DefaultLabels is the label order the reference iris model is trained with.
var DefaultLabels = []string{"setosa", "versicolor", "virginica"}

var descriptionJSON = mustMarshal(buildDescription())

// Describe returns a fresh copy of the static contract description.
func Describe() ContractDescription {
	var d ContractDescription
	if err := json.Unmarshal(descriptionJSON, &d); err != nil {
		panic(err)
	}
	return d
}

// DescriptionJSON returns the contract description encoded once at init. The
// same bytes are returned on every call; callers must not modify them.
func DescriptionJSON() []byte {
	return descriptionJSON
}

func buildDescription() ContractDescription {
	lo, hi := MinFeatureValue, MaxFeatureValue
	zero, one := 0.0, 1.0

	measurement := func(desc string) *Schema {
		return &Schema{Type: "number", Description: desc, Minimum: &lo, Maximum: &hi}
	}

	features := &Schema{
		Type:  "object",
		Title: "IrisFeatures",
		Properties: map[string]*Schema{
			FieldSepalLength: measurement("Sepal length in cm"),
			FieldSepalWidth:  measurement("Sepal width in cm"),
			FieldPetalLength: measurement("Petal length in cm"),
			FieldPetalWidth:  measurement("Petal width in cm"),
		},
		Required: append([]string(nil), FeatureNames...),
		Example: map[string]float64{
			FieldSepalLength: 5.1,
			FieldSepalWidth:  3.5,
			FieldPetalLength: 1.4,
			FieldPetalWidth:  0.2,
		},
	}

	input := &Schema{
		Type:       "object",
		Title:      "InferenceRequest",
		Properties: map[string]*Schema{"features": features},
		Required:   []string{"features"},
	}

	output := &Schema{
		Type:  "object",
		Title: "InferenceResponse",
		Properties: map[string]*Schema{
			"prediction": {
				Type:        "integer",
				Description: "Predicted class index (0=setosa, 1=versicolor, 2=virginica)",
				Minimum:     &zero,
			},
			"prediction_label": {
				Type:        "string",
				Description: "Human-readable class name",
				Enum:        append([]string(nil), DefaultLabels...),
			},
			"confidence": {
				Type:        "number",
				Description: "Maximum class probability",
				Minimum:     &zero,
				Maximum:     &one,
			},
			"model_version": {
				Type:        "string",
				Description: "Version of the model that produced the prediction",
			},
		},
		Required: []string{"prediction", "prediction_label", "confidence", "model_version"},
		Example: map[string]any{
			"prediction":       0,
			"prediction_label": "setosa",
			"confidence":       0.95,
			"model_version":    "1",
		},
	}

	return ContractDescription{InputSchema: input, OutputSchema: output}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
