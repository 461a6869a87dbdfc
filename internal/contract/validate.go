package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	fieldBody     = "body"
	fieldFeatures = "features"
)

// featureInput is the typed view of the features object. Pointers tell an
// absent field apart from a zero measurement. Bounds mirror MinFeatureValue
// and MaxFeatureValue.
type featureInput struct {
	SepalLength *float64 `json:"sepal_length" validate:"required,gte=0,lte=10"`
	SepalWidth  *float64 `json:"sepal_width" validate:"required,gte=0,lte=10"`
	PetalLength *float64 `json:"petal_length" validate:"required,gte=0,lte=10"`
	PetalWidth  *float64 `json:"petal_width" validate:"required,gte=0,lte=10"`
}

func (in *featureInput) slots() []**float64 {
	return []**float64{&in.SepalLength, &in.SepalWidth, &in.PetalLength, &in.PetalWidth}
}

func (in featureInput) vector() FeatureVector {
	return FeatureVector{
		SepalLength: *in.SepalLength,
		SepalWidth:  *in.SepalWidth,
		PetalLength: *in.PetalLength,
		PetalWidth:  *in.PetalWidth,
	}
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate decodes a raw predict body and checks it against the contract.
// On failure the returned error is a *ValidationError naming every offending field.
func Validate(raw []byte) (FeatureVector, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		verr := &ValidationError{}
		verr.add(fieldBody, ReasonMalformed, fmt.Sprintf("invalid JSON: %v", err))
		return FeatureVector{}, verr
	}
	if dec.More() {
		verr := &ValidationError{}
		verr.add(fieldBody, ReasonMalformed, "invalid JSON: trailing data after object")
		return FeatureVector{}, verr
	}

	return ValidatePayload(payload)
}

// ValidatePayload checks an already decoded payload. Numbers may be float64 or
// json.Number; strings, booleans and nulls are rejected as non-numeric.
func ValidatePayload(payload any) (FeatureVector, error) {
	verr := &ValidationError{}

	body, ok := payload.(map[string]any)
	if !ok {
		verr.add(fieldBody, ReasonNotObject, "request body must be a JSON object")
		return FeatureVector{}, verr
	}

	rawFeatures, present := body[fieldFeatures]
	if !present {
		verr.add(fieldFeatures, ReasonMissing, "field required")
		return FeatureVector{}, verr
	}
	features, ok := rawFeatures.(map[string]any)
	if !ok {
		verr.add(fieldFeatures, ReasonNotObject, "features must be a JSON object")
		return FeatureVector{}, verr
	}

	// The generic decode keeps the JSON type, so strings and booleans never
	// reach the struct. Absent keys are left nil for the required rule.
	var in featureInput
	slots := in.slots()
	issues := make(map[string]FieldError)
	for i, name := range FeatureNames {
		raw, present := features[name]
		if !present {
			continue
		}
		v, ok := asFloat(raw)
		if !ok {
			issues[name] = FieldError{
				Field:   fieldFeatures + "." + name,
				Reason:  ReasonNotNumber,
				Message: "value is not a valid number",
			}
			continue
		}
		*slots[i] = &v
	}

	if err := check(in, issues); err != nil {
		return FeatureVector{}, err
	}
	return in.vector(), nil
}

// Check validates an already typed vector against the declared bounds.
func (f FeatureVector) Check() error {
	values := f.Values()
	in := featureInput{
		SepalLength: &values[0],
		SepalWidth:  &values[1],
		PetalLength: &values[2],
		PetalWidth:  &values[3],
	}
	return check(in, nil)
}

// check runs the struct rules and merges their failures with issues already
// found. Fields are reported in FeatureNames order, one failure per field.
func check(in featureInput, issues map[string]FieldError) error {
	if issues == nil {
		issues = make(map[string]FieldError)
	}

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			if _, seen := issues[fe.Field()]; seen {
				continue
			}
			issues[fe.Field()] = fieldError(fe)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	verr := &ValidationError{}
	for _, name := range FeatureNames {
		if fe, ok := issues[name]; ok {
			verr.Fields = append(verr.Fields, fe)
		}
	}
	return verr
}

// fieldError maps a validator failure onto the contract's reasons.
func fieldError(fe validator.FieldError) FieldError {
	path := fieldFeatures + "." + fe.Field()
	switch fe.Tag() {
	case "required":
		return FieldError{Field: path, Reason: ReasonMissing, Message: "field required"}
	case "gte", "lte":
		return FieldError{Field: path, Reason: ReasonOutOfRange, Message: rangeMessage(fe.Value())}
	default:
		return FieldError{Field: path, Reason: ReasonNotNumber, Message: fe.Error()}
	}
}

func rangeMessage(value any) string {
	if p, ok := value.(*float64); ok && p != nil {
		value = *p
	}
	return fmt.Sprintf("value %v must be between %v and %v", value, MinFeatureValue, MaxFeatureValue)
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil && !math.IsInf(f, 0) {
			return 0, false
		}
		// Overflowing literals decode to ±Inf and fail the range rules.
		return f, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
