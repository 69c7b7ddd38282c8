package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/chat"
	"github.com/sells-group/census-insights/internal/model"
)

// errNotTrained is the 503 body for model endpoints before the first pass.
const errNotTrained = "ML models not trained yet"

// badRequestError marks a malformed request.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		bad       *badRequestError
		schema    *model.SchemaMismatchError
		district  *model.DistrictNotFoundError
		notFound  *model.NotFoundError
		untrained *model.UntrainedModelError
	)
	switch {
	case errors.As(err, &bad), errors.As(err, &schema), errors.Is(err, chat.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.As(err, &district), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrTrainingInProgress):
		return http.StatusConflict
	case errors.As(err, &untrained):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError responds with the status for err. Untrained models share one
// message; server errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = errNotTrained
	case http.StatusInternalServerError:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeMessage(w, status, msg)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}
