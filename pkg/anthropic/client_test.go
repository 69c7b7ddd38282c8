package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:         "msg_test_123",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: "end_turn",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Kerala leads literacy."},
			{Type: "text", Text: "Bihar trails."},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "Kerala leads literacy.\nBihar trails.", resp.Text())
	assert.Equal(t, int64(2000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Empty(t, resp.Text())
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestMessageResponseTextSkipsNonText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "tool_use"},
		{Type: "text", Text: "  answer  "},
	}}
	assert.Equal(t, "answer", resp.Text())
}

func TestToSDKMessages(t *testing.T) {
	tests := []struct {
		name string
		msgs []Message
		want int
	}{
		{"empty", nil, 0},
		{"user", []Message{{Role: RoleUser, Content: "Which state has the most districts?"}}, 1},
		{"mixed", []Message{
			{Role: RoleUser, Content: "Literacy in Kerala?"},
			{Role: RoleAssistant, Content: "About 94 percent."},
			{Role: RoleUser, Content: "And Bihar?"},
		}, 3},
		{"unknown role", []Message{{Role: "system", Content: "text"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, toSDKMessages(tt.msgs), tt.want)
		})
	}
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "First block"},
		{Text: "Second block", CacheControl: &CacheControl{TTL: "5m"}},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "First block", blocks[0].Text)
	assert.Equal(t, "Second block", blocks[1].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("5m"), blocks[1].CacheControl.TTL)

	assert.Nil(t, toSDKSystemBlocks(nil))
}

func TestCachedSystem(t *testing.T) {
	blocks := CachedSystem("census context", "5m")
	require.Len(t, blocks, 1)
	assert.Equal(t, "census context", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	client := NewClient("test-api-key")
	require.NotNil(t, client)
}

func TestCreateMessage_RejectsEmptyConversation(t *testing.T) {
	_, err := NewClient("test-api-key").CreateMessage(context.Background(), MessageRequest{Model: "claude-haiku-4-5-20251001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no messages")
}

// streamEvents is a Messages API event stream replying "Kerala leads.".
var streamEvents = []string{
	`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Kerala "}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"leads."}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`,
	`{"type":"message_stop"}`,
}

func newStreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range streamEvents {
			typ := strings.SplitN(strings.TrimPrefix(ev, `{"type":"`), `"`, 2)[0]
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ, ev)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamMessage(t *testing.T) {
	srv := newStreamServer(t)
	client := NewClient("test-api-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	var chunks []string
	resp, err := client.StreamMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Messages:  []Message{{Role: RoleUser, Content: "Which state leads on literacy?"}},
	}, func(text string) error {
		chunks = append(chunks, text)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Kerala ", "leads."}, chunks)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "Kerala leads.", resp.Text())
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, int64(4), resp.Usage.OutputTokens)
}

func TestStreamMessage_HandlerErrorStops(t *testing.T) {
	srv := newStreamServer(t)
	client := NewClient("test-api-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	gone := errors.New("client went away")
	calls := 0
	_, err := client.StreamMessage(context.Background(), MessageRequest{
		Model:    "claude-haiku-4-5-20251001",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, func(string) error {
		calls++
		return gone
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gone))
	assert.Equal(t, 1, calls)
}

func TestStreamMessage_RejectsEmptyConversation(t *testing.T) {
	_, err := NewClient("test-api-key").StreamMessage(context.Background(), MessageRequest{Model: "claude-haiku-4-5-20251001"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no messages")
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{"haiku", "claude-haiku-4-5-20251001", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 4.80},
		{"sonnet", "claude-sonnet-4-5-20250929", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 18.00},
		// 0.40 input + 0.40 output + 0.20 cache write + 0.024 cache read
		{"with cache", "claude-haiku-4-5-20251001", TokenUsage{
			InputTokens:              500_000,
			OutputTokens:             100_000,
			CacheCreationInputTokens: 200_000,
			CacheReadInputTokens:     300_000,
		}, 1.024},
		{"unknown model", "unknown-model", TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero tokens", "claude-haiku-4-5-20251001", TokenUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 0.001)
		})
	}
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "chat")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}
