//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/chat"
	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/registry"
	"github.com/sells-group/census-insights/internal/store"
	"github.com/sells-group/census-insights/pkg/anthropic"
)

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	body := decode(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["models_ready"])
}

func TestRouter_DataViews(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	for _, path := range []string{
		"/api/overview", "/api/states", "/api/insights/states", "/api/demographics",
		"/api/workforce", "/api/housing", "/api/summary",
	} {
		t.Run(path, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		})
	}

	rr := do(t, h, http.MethodGet, "/api/overview", nil)
	assert.EqualValues(t, 30, decode(t, rr)["total_districts"])

	rr = do(t, h, http.MethodGet, "/api/states", nil)
	assert.Len(t, decode(t, rr)["states"], 4)
}

func TestRouter_StateDetail(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/state/State%201", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "State 1", body["state_name"])
	assert.EqualValues(t, 8, body["total_districts"])

	rr = do(t, h, http.MethodGet, "/api/state/Atlantis", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "State not found", decode(t, rr)["error"])
}

func TestRouter_ModelEndpointsBeforeTraining(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/ml/overview"},
		{http.MethodGet, "/api/ml/literacy-prediction"},
		{http.MethodGet, "/api/ml/cluster-comparison"},
		{http.MethodPost, "/api/ml/predict-literacy"},
	} {
		rr := do(t, h, tc.method, tc.path, map[string]any{"features": map[string]float64{"Population": 1}})
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, tc.path)
		assert.Equal(t, errNotTrained, decode(t, rr)["error"])
	}
}

func TestRouter_ModelResults(t *testing.T) {
	env := newTrainedEnv(t)
	h := buildRouter(env, []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/ml/overview", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 6, body["models_trained"])
	models := body["models"].(map[string]any)
	assert.Len(t, models, 10)
	hq := models["housing_quality_prediction"].(map[string]any)
	assert.Equal(t, "skipped", hq["type"])
	assert.Equal(t, "housing data not loaded", hq["reason"])

	rr = do(t, h, http.MethodGet, "/api/ml/literacy-prediction", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode(t, rr), "r2_score")

	rr = do(t, h, http.MethodGet, "/api/ml/pca_analysis", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode(t, rr), "explained_variance")

	rr = do(t, h, http.MethodGet, "/api/ml/no-such-task", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/ml/cluster-comparison", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Len(t, body["clusters"], 3)
	assert.Len(t, body["metrics"], 4)
}

func TestRouter_Recommendations(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodGet, "/api/ml/recommendations/District%2000", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "District 00", body["district"])
	assert.GreaterOrEqual(t, body["priority_score"].(float64), 10.0)

	rr = do(t, h, http.MethodGet, "/api/ml/recommendations/Nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/ml/top-recommendations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	top := body["top_priority_districts"].([]any)
	require.Len(t, top, 3)
	assert.Equal(t, "District 00", top[0].(map[string]any)["district"])
	assert.EqualValues(t, 30, body["total_analyzed"])

	rr = do(t, h, http.MethodGet, "/api/ml/top-recommendations?limit=1", nil)
	assert.Len(t, decode(t, rr)["top_priority_districts"], 1)

	rr = do(t, h, http.MethodGet, "/api/ml/top-recommendations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Predict(t *testing.T) {
	env := newTrainedEnv(t)
	h := buildRouter(env, []string{"*"})

	names, err := env.Registry.Features(registry.Literacy)
	require.NoError(t, err)
	features := make(map[string]float64, len(names))
	for i, n := range names {
		features[n] = float64(10 + i)
	}

	rr := do(t, h, http.MethodPost, "/api/ml/predict-literacy", map[string]any{"features": features})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Contains(t, body, "predicted_literacy_rate")
	assert.Len(t, body["features_used"], len(names))

	delete(features, names[0])
	rr = do(t, h, http.MethodPost, "/api/ml/predict-literacy", map[string]any{"features": features})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["error"], names[0])

	rr = do(t, h, http.MethodPost, "/api/ml/predict-literacy", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Housing models did not train without the houselisting table.
	rr = do(t, h, http.MethodPost, "/api/ml/predict-housing-quality", map[string]any{"features": features})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_TrainAndRuns(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/ml/train", nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	env.Wait()
	assert.True(t, env.Ready())

	rr = do(t, h, http.MethodGet, "/api/ml/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	runs := decode(t, rr)["runs"].([]any)
	require.Len(t, runs, 1)
	id := runs[0].(map[string]any)["id"].(string)

	rr = do(t, h, http.MethodGet, "/api/ml/runs/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(model.RunStatusComplete), decode(t, rr)["status"])

	rr = do(t, h, http.MethodGet, "/api/ml/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_TrainConflict(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, []string{"*"})

	release := make(chan struct{})
	blocked := &blockingStore{Store: env.Store, release: release}
	env.Store = blocked

	require.NoError(t, env.TrainAsync(context.Background()))
	rr := do(t, h, http.MethodPost, "/api/ml/train", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	env.Wait()
}

// blockingStore holds CreateRun until release is closed.
type blockingStore struct {
	store.Store
	release chan struct{}
}

func (s *blockingStore) CreateRun(ctx context.Context, withHousing bool) (*model.TrainingRun, error) {
	<-s.release
	return s.Store.CreateRun(ctx, withHousing)
}

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// StreamMessage delivers the mocked reply to onText one word at a time.
func (m *mockAnthropicClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest, onText anthropic.TextHandler) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	resp := args.Get(0).(*anthropic.MessageResponse)
	for _, chunk := range strings.SplitAfter(resp.Text(), " ") {
		if err := onText(chunk); err != nil {
			return nil, err
		}
	}
	return resp, args.Error(1)
}

func withChat(env *app.Env, client anthropic.Client) {
	env.Chat = chat.New(client, env.Store, env.Briefing, chat.Config{Model: "claude-haiku-4-5-20251001", MaxTokens: 256, HistoryLimit: 10})
}

func TestRouter_ChatDisabled(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/chatbot/session", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Chatbot not initialized", decode(t, rr)["error"])
}

// events splits a server-sent event body into its decoded data payloads.
func events(t *testing.T, body string) []map[string]any {
	t.Helper()
	require.True(t, strings.HasSuffix(body, "\n\n"), "unterminated event in %q", body)
	var out []map[string]any
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		data, ok := strings.CutPrefix(frame, "data: ")
		require.True(t, ok, "bad frame %q", frame)
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		out = append(out, ev)
	}
	return out
}

func TestRouter_ChatStream(t *testing.T) {
	env := newTestEnv(t)
	client := &mockAnthropicClient{}
	withChat(env, client)
	h := buildRouter(env, []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/chatbot/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["session_id"].(string)

	rr = do(t, h, http.MethodPost, "/api/chatbot/stream", map[string]string{"session_id": id})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "message is required", decode(t, rr)["error"])

	rr = do(t, h, http.MethodPost, "/api/chatbot/stream", map[string]string{"session_id": "missing", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	client.On("StreamMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "State 0 leads."}},
	}, nil).Once()
	rr = do(t, h, http.MethodPost, "/api/chatbot/stream", map[string]string{"session_id": id, "message": "Which state leads?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.True(t, rr.Flushed)

	evs := events(t, rr.Body.String())
	require.Len(t, evs, 4)
	var text string
	for _, ev := range evs[:3] {
		assert.Equal(t, true, ev["success"])
		assert.Equal(t, false, ev["done"])
		assert.Equal(t, id, ev["session_id"])
		text += ev["chunk"].(string)
	}
	assert.Equal(t, "State 0 leads.", text)
	assert.Equal(t, true, evs[3]["done"])
	assert.Equal(t, "", evs[3]["chunk"])
	assert.Equal(t, "State 0 leads.", evs[3]["full_response"])

	rr = do(t, h, http.MethodGet, "/api/chatbot/history/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode(t, rr)["history"].([]any)
	require.Len(t, history, 2)
	assert.Equal(t, "State 0 leads.", history[1].(map[string]any)["content"])
	client.AssertExpectations(t)
}

func TestRouter_ChatSession(t *testing.T) {
	env := newTestEnv(t)
	client := &mockAnthropicClient{}
	withChat(env, client)
	h := buildRouter(env, []string{"*"})

	rr := do(t, h, http.MethodPost, "/api/chatbot/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	id := body["session_id"].(string)

	rr = do(t, h, http.MethodPost, "/api/chatbot/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "session_id is required", decode(t, rr)["error"])

	rr = do(t, h, http.MethodPost, "/api/chatbot/chat", map[string]string{"session_id": id, "message": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "message is required", decode(t, rr)["error"])

	rr = do(t, h, http.MethodPost, "/api/chatbot/chat", map[string]string{"session_id": "missing", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "State 0 is the largest."}},
	}, nil).Once()
	rr = do(t, h, http.MethodPost, "/api/chatbot/chat", map[string]string{"session_id": id, "message": "Which state is largest?"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "State 0 is the largest.", decode(t, rr)["ai_response"])

	rr = do(t, h, http.MethodGet, "/api/chatbot/history/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["history"], 2)

	rr = do(t, h, http.MethodGet, "/api/chatbot/summary/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, decode(t, rr)["success"])

	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Population questions."}},
	}, nil).Once()
	rr = do(t, h, http.MethodPost, "/api/chatbot/summary/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Population questions.", decode(t, rr)["summary"])

	rr = do(t, h, http.MethodGet, "/api/chatbot/summary/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Population questions.", decode(t, rr)["summary"])

	rr = do(t, h, http.MethodGet, "/api/chatbot/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["sessions"], 1)

	rr = do(t, h, http.MethodDelete, "/api/chatbot/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodDelete, "/api/chatbot/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	client.AssertExpectations(t)
}

func TestRouter_CORS(t *testing.T) {
	h := buildRouter(newTestEnv(t), []string{"https://census.example.org"})

	req := httptest.NewRequest(http.MethodOptions, "/api/overview", nil)
	req.Header.Set("Origin", "https://census.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://census.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
}
