package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"iris-service/internal/common"
	"iris-service/internal/contract"

	"github.com/rs/zerolog"
)

// Error codes carried in ErrorBody.Error.
const (
	codeValidation       = "validation_error"
	codeModelUnavailable = "model_unavailable"
	codeInternal         = "internal_error"
	codeTooLarge         = "payload_too_large"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Detail  []contract.FieldError `json:"detail,omitempty"`
}

// InfoResponse is served at the root path.
type InfoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

var info = InfoResponse{
	Service: common.ServiceName,
	Version: common.ServiceVersion,
	Status:  "running",
	Endpoints: map[string]string{
		"health":   PathHealth,
		"predict":  PathPredict,
		"contract": PathContract,
		"metrics":  PathMetrics,
		"stream":   PathStream,
	},
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.svc.Health()

	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(s.svc.ContractJSON())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorBody{
				Error:   codeTooLarge,
				Message: "request body exceeds the configured limit",
			})
			return
		}
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("failed to read request body")
		writeError(w, http.StatusBadRequest, ErrorBody{Error: codeValidation, Message: "failed to read request body"})
		return
	}

	result, status, errBody := s.predict(r, body)
	if errBody != nil {
		writeError(w, status, *errBody)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// predict runs validation and scoring for one request payload. It is shared
// by the HTTP and websocket paths.
func (s *Server) predict(r *http.Request, body []byte) (contract.PredictionResult, int, *ErrorBody) {
	features, err := contract.Validate(body)
	if err != nil {
		s.svc.ValidationFailed(err)
		return contract.PredictionResult{}, http.StatusUnprocessableEntity, validationBody(err)
	}

	result, err := s.svc.Predict(r.Context(), features)
	if err != nil {
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			return contract.PredictionResult{}, http.StatusUnprocessableEntity, validationBody(err)
		}
		status, eb := predictionFailure(err)
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("prediction failed")
		return contract.PredictionResult{}, status, &eb
	}
	return result, http.StatusOK, nil
}

func validationBody(err error) *ErrorBody {
	eb := &ErrorBody{Error: codeValidation, Message: err.Error()}
	var verr *contract.ValidationError
	if errors.As(err, &verr) {
		eb.Detail = verr.Fields
	}
	return eb
}

// predictionFailure maps a Predict error to a status and body. Internal
// details stay in the log.
func predictionFailure(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, contract.ErrModelUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{
			Error:   codeModelUnavailable,
			Message: "model is not loaded",
		}
	case errors.Is(err, contract.ErrInternalInconsistency):
		return http.StatusInternalServerError, ErrorBody{
			Error:   codeInternal,
			Message: "model output is inconsistent with the label set",
		}
	default:
		return http.StatusInternalServerError, ErrorBody{
			Error:   codeInternal,
			Message: "prediction failed",
		}
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrorBody{Error: codeNotFound, Message: "no route for " + r.URL.Path})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrorBody{
		Error:   codeMethodNotAllowed,
		Message: r.Method + " is not allowed on " + r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body ErrorBody) {
	writeJSON(w, status, body)
}
