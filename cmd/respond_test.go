//go:build !integration

package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/chat"
	"github.com/sells-group/census-insights/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", badRequest("message is required"), http.StatusBadRequest},
		{"schema mismatch", &model.SchemaMismatchError{Model: "literacy", Missing: []string{"x"}}, http.StatusBadRequest},
		{"empty question", chat.ErrEmptyQuestion, http.StatusBadRequest},
		{"district", eris.Wrap(&model.DistrictNotFoundError{District: "Nowhere"}, "policy: recommend"), http.StatusNotFound},
		{"not found", &model.NotFoundError{Entity: "run", ID: "x"}, http.StatusNotFound},
		{"training", eris.Wrap(app.ErrTrainingInProgress, "train"), http.StatusConflict},
		{"untrained", &model.UntrainedModelError{Model: "literacy"}, http.StatusServiceUnavailable},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_UntrainedMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ml/overview", nil)

	writeError(rr, req, &model.UntrainedModelError{Model: "district_clusters"})

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"ML models not trained yet"}`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}
