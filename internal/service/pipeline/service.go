package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/response"
	"github.com/zhouzirui/moodchat/backend/internal/errx"
	"github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/moodchat/backend/internal/service/chat"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
)

var (
	ErrAnalysisFailed = errors.New("failed to analyze input")
	ErrInvalidInput   = errors.New("user and message are required")
)

// Completer is the provider boundary used by the pipeline.
type Completer interface {
	Complete(ctx context.Context, id ai.ModelID, messages []*schema.Message) (*schema.Message, error)
	ModelName(id ai.ModelID) string
}

// Result is one completed turn.
type Result struct {
	AIResponse  string      `json:"aiResponse"`
	ChatHistory []chat.Turn `json:"chatHistory"`

	Complexity response.Complexity `json:"-"`
	Emotions   emotion.Vector      `json:"-"`
	Model      ai.ModelID          `json:"-"`
	// Degraded is set when generation failed and AIResponse is the fallback text.
	Degraded bool `json:"-"`
}

// Service runs classification, routing, generation and the session update for
// one message at a time. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	completer Completer
	store     chatservice.Store
	now       func() time.Time
}

// NewService wires the pipeline.
func NewService(completer Completer, store chatservice.Store) *Service {
	return &Service{
		completer: completer,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Analyze handles one user message. It either records a whole turn and returns
// it, or fails before touching the session store.
func (s *Service) Analyze(ctx context.Context, user, input string) (Result, error) {
	if strings.TrimSpace(user) == "" || strings.TrimSpace(input) == "" {
		return Result{}, errx.New(ErrInvalidInput, http.StatusBadRequest, ErrInvalidInput.Error())
	}

	started := time.Now()

	classifyReply, err := s.completer.Complete(ctx, ai.ModelCheap, []*schema.Message{
		schema.UserMessage(ai.BuildClassificationPrompt(input)),
	})
	if err != nil {
		logx.Error().Err(err).Str("user", user).Msg("classification request failed")
		return Result{}, errx.New(fmt.Errorf("%w: %w", ErrAnalysisFailed, err), http.StatusBadGateway, ErrAnalysisFailed.Error())
	}

	classification := response.ParseClassification(classifyReply.Content)
	if len(classification.Anomalies) > 0 {
		logx.Warn().
			Str("component", "pipeline").
			Str("user", user).
			Strs("anomalies", classification.Anomalies).
			Msg("classification reply degraded to defaults")
	}

	if err := s.store.RecordEmotions(ctx, user, classification.Emotions); err != nil {
		return Result{}, fmt.Errorf("record emotions: %w", err)
	}

	target := route(classification.Complexity)

	degraded := false
	reply, err := s.completer.Complete(ctx, target, []*schema.Message{
		schema.SystemMessage(ai.BuildResponsePrompt()),
		schema.UserMessage(input),
	})
	if err != nil {
		logx.Warn().Err(err).Str("user", user).Str("model", s.completer.ModelName(target)).Msg("generation request failed, using fallback reply")
		reply = nil
		degraded = true
	}
	text := response.ParseGeneratedReply(reply)
	if text == response.FallbackReply {
		degraded = true
	}

	if err := s.store.AppendTurns(ctx, user, input, text, s.now()); err != nil {
		return Result{}, fmt.Errorf("append turns: %w", err)
	}

	history, err := s.store.History(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}

	logx.Info().
		Str("user", user).
		Str("complexity", string(classification.Complexity)).
		Str("emotions", classification.Emotions.String()).
		Str("model", s.completer.ModelName(target)).
		Bool("degraded", degraded).
		Dur("elapsed", time.Since(started)).
		Msg("turn completed")

	return Result{
		AIResponse:  text,
		ChatHistory: history,
		Complexity:  classification.Complexity,
		Emotions:    classification.Emotions,
		Model:       target,
		Degraded:    degraded,
	}, nil
}

// route is the only branch of the pipeline.
func route(c response.Complexity) ai.ModelID {
	if c == response.Complex {
		return ai.ModelStrong
	}
	return ai.ModelCheap
}
