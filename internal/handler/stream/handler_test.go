package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/response"
	"github.com/zhouzirui/moodchat/backend/internal/errx"
	modelchat "github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
)

type analyzerFunc func(ctx context.Context, user, input string) (pipeline.Result, error)

func (f analyzerFunc) Analyze(ctx context.Context, user, input string) (pipeline.Result, error) {
	return f(ctx, user, input)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func serve(h *Handler, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/users/alice/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStreamEmitsStages(t *testing.T) {
	h := New(analyzerFunc(func(_ context.Context, user, input string) (pipeline.Result, error) {
		return pipeline.Result{
			AIResponse: "Great to hear!",
			ChatHistory: []modelchat.Turn{
				{Role: modelchat.RoleUser, Text: input},
				{Role: modelchat.RoleBot, Text: "Great to hear!"},
			},
			Complexity: response.Simple,
			Emotions:   emotion.NewVector(emotion.VeryHappy),
			Model:      ai.ModelCheap,
		}, nil
	}))

	resp := serve(h, `{"message":"I am so excited!!"}`)

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	events := readEvents(t, resp.Body.String())
	var names []string
	for _, ev := range events {
		names = append(names, ev.name)
	}
	if got := strings.Join(names, ","); got != "start,analysis,reply,history,done" {
		t.Fatalf("unexpected event order: %s", got)
	}

	var analysis AnalysisEvent
	if err := json.Unmarshal([]byte(events[1].data), &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.Model != "cheap" || analysis.Complexity != "simple" || analysis.Vector != "[1,0,0,0,0,0,0,0]" {
		t.Fatalf("unexpected analysis event: %+v", analysis)
	}
	if len(analysis.Emotions) != 1 || analysis.Emotions[0] != "vhappy" {
		t.Fatalf("unexpected emotions: %v", analysis.Emotions)
	}
}

func TestStreamReportsFailure(t *testing.T) {
	h := New(analyzerFunc(func(context.Context, string, string) (pipeline.Result, error) {
		return pipeline.Result{}, errx.New(errors.Join(pipeline.ErrAnalysisFailed, errors.New("timeout")), http.StatusBadGateway, pipeline.ErrAnalysisFailed.Error())
	}))

	resp := serve(h, `{"message":"hello"}`)

	events := readEvents(t, resp.Body.String())
	if len(events) != 2 || events[1].name != "error" {
		t.Fatalf("expected start then error, got %+v", events)
	}
	if !strings.Contains(events[1].data, pipeline.ErrAnalysisFailed.Error()) {
		t.Fatalf("unexpected error payload %s", events[1].data)
	}
}

func TestStreamRejectsBlankMessage(t *testing.T) {
	called := false
	h := New(analyzerFunc(func(context.Context, string, string) (pipeline.Result, error) {
		called = true
		return pipeline.Result{}, nil
	}))

	resp := serve(h, `{"message":""}`)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if called {
		t.Fatal("analyzer should not run for blank input")
	}
}
