// Package chat answers free-form questions about the loaded census data by
// sending the dataset context and recent conversation turns to an LLM.
package chat

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/census-insights/internal/model"
	"github.com/sells-group/census-insights/internal/store"
	"github.com/sells-group/census-insights/pkg/anthropic"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = eris.New("chat: question is required")

// NoHistory is returned by Summarise for a session without messages.
const NoHistory = "No conversation history found for this session."

// BriefingFunc supplies the current dataset context.
type BriefingFunc func() *Briefing

// Config configures a Service.
type Config struct {
	Model             string
	MaxTokens         int64
	HistoryLimit      int
	RequestsPerMinute int
}

// Reply is one answered question.
type Reply struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"user_prompt"`
	Answer    string    `json:"ai_response"`
	Timestamp time.Time `json:"timestamp"`
}

// Service runs chat sessions persisted in a store.
type Service struct {
	client  anthropic.Client
	store   store.Store
	brief   BriefingFunc
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Service. A zero RequestsPerMinute disables throttling.
func New(client anthropic.Client, st store.Store, brief BriefingFunc, cfg Config) *Service {
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute)
	}
	return &Service{
		client:  client,
		store:   st,
		brief:   brief,
		cfg:     cfg,
		limiter: lim,
		now:     time.Now,
	}
}

// CreateSession starts a new conversation.
func (s *Service) CreateSession(ctx context.Context) (*model.ChatSession, error) {
	sess, err := s.store.CreateSession(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "chat: create session")
	}
	zap.L().Info("chat: session created", zap.String("session_id", sess.ID))
	return sess, nil
}

// Ask answers question within the session. Both turns are stored only after
// the model replies, so a failed call leaves the history unchanged.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	req, turns, err := s.prepare(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "chat: ask")
	}
	return s.record(ctx, sessionID, question, resp, turns)
}

// AskStream is Ask with the answer delivered to onChunk as it is generated.
// The full exchange is stored once the stream completes; an interrupted
// stream stores nothing.
func (s *Service) AskStream(ctx context.Context, sessionID, question string, onChunk anthropic.TextHandler) (*Reply, error) {
	question = strings.TrimSpace(question)
	req, turns, err := s.prepare(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.StreamMessage(ctx, req, onChunk)
	if err != nil {
		return nil, eris.Wrap(err, "chat: stream")
	}
	return s.record(ctx, sessionID, question, resp, turns)
}

// prepare builds the request for question from the stored history and
// waits for the rate limiter. It returns the number of prior turns.
func (s *Service) prepare(ctx context.Context, sessionID, question string) (anthropic.MessageRequest, int, error) {
	if question == "" {
		return anthropic.MessageRequest{}, 0, ErrEmptyQuestion
	}

	history, err := s.store.ListMessages(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		return anthropic.MessageRequest{}, 0, eris.Wrapf(err, "chat: load history for %s", sessionID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return anthropic.MessageRequest{}, 0, eris.Wrap(err, "chat: rate limit")
	}

	msgs := make([]anthropic.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, anthropic.Message{Role: string(model.ChatRoleUser), Content: question})

	var brief *Briefing
	if s.brief != nil {
		brief = s.brief()
	}
	return anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    anthropic.CachedSystem(SystemPrompt(brief), "5m"),
		Messages:  msgs,
	}, len(history), nil
}

func (s *Service) record(ctx context.Context, sessionID, question string, resp *anthropic.MessageResponse, turns int) (*Reply, error) {
	resp.Usage.LogCost(s.cfg.Model, "chat")

	answer := resp.Text()
	if _, err := s.store.AppendMessage(ctx, sessionID, model.ChatRoleUser, question); err != nil {
		return nil, eris.Wrap(err, "chat: save question")
	}
	if _, err := s.store.AppendMessage(ctx, sessionID, model.ChatRoleAssistant, answer); err != nil {
		return nil, eris.Wrap(err, "chat: save answer")
	}

	zap.L().Info("chat: answered",
		zap.String("session_id", sessionID),
		zap.Int("history", turns),
		zap.Int("answer_len", len(answer)),
	)
	return &Reply{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Timestamp: s.now(),
	}, nil
}

// History returns the session's stored messages, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	msgs, err := s.store.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "chat: history for %s", sessionID)
	}
	return msgs, nil
}

// Summarise generates and stores a summary of the session.
func (s *Service) Summarise(ctx context.Context, sessionID string) (string, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return NoHistory, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "chat: rate limit")
	}
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		Messages:  []anthropic.Message{{Role: string(model.ChatRoleUser), Content: summaryPrompt(history)}},
	})
	if err != nil {
		return "", eris.Wrap(err, "chat: summarise")
	}
	resp.Usage.LogCost(s.cfg.Model, "summary")

	summary := resp.Text()
	if err := s.store.SaveSummary(ctx, sessionID, summary); err != nil {
		return "", eris.Wrap(err, "chat: save summary")
	}
	return summary, nil
}

// Summary returns the stored summary, empty if none was generated.
func (s *Service) Summary(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", eris.Wrapf(err, "chat: get session %s", sessionID)
	}
	return sess.Summary, nil
}

// Sessions lists the most recently updated sessions.
func (s *Service) Sessions(ctx context.Context, limit int) ([]model.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "chat: list sessions")
	}
	return sessions, nil
}

// Delete removes a session and its messages.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return eris.Wrapf(err, "chat: delete session %s", sessionID)
	}
	return nil
}

func sortedTasks(s *model.RunSummary) []string {
	names := make([]string, 0, len(s.Tasks))
	for name := range s.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
