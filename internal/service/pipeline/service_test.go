package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/moodchat/backend/internal/analysis/response"
	"github.com/zhouzirui/moodchat/backend/internal/errx"
	modelchat "github.com/zhouzirui/moodchat/backend/internal/model/chat"
	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai/aitest"
	chatservice "github.com/zhouzirui/moodchat/backend/internal/service/chat"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// provider answers classification prompts with classify and generation
// requests (system + user) with generate.
func provider(classify func(prompt string) (string, error), generate func(input string) (string, error)) *aitest.Model {
	return aitest.New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		if len(msgs) == 2 && msgs[0].Role == schema.System {
			text, err := generate(msgs[1].Content)
			if err != nil {
				return nil, err
			}
			return schema.AssistantMessage(text, nil), nil
		}
		text, err := classify(msgs[0].Content)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(text, nil), nil
	})
}

func fixed(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

func failing(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}

type fixture struct {
	svc    *pipeline.Service
	store  *chatservice.MemoryStore
	cheap  *aitest.Model
	strong *aitest.Model
}

func newFixture(t *testing.T, cheap, strong *aitest.Model) fixture {
	t.Helper()
	client, err := ai.NewClient(context.Background(), ai.Config{
		Cheap:      cheap,
		CheapName:  "gpt-4o-mini",
		Strong:     strong,
		StrongName: "gpt-4o",
		Timeout:    time.Second,
	})
	require.NoError(t, err)

	store := chatservice.NewMemoryStore()
	return fixture{
		svc:    pipeline.NewService(client, store),
		store:  store,
		cheap:  cheap,
		strong: strong,
	}
}

func TestAnalyzeSimpleTurnUsesCheapModel(t *testing.T) {
	cheap := provider(fixed("Complexity: simple\nEmotions: [1,0,0,0,0,0,0,0]"), fixed("That's wonderful news!"))
	strong := aitest.Reply("should not be used")
	f := newFixture(t, cheap, strong)
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, "alice", "I am so excited!!")
	require.NoError(t, err)

	assert.Equal(t, "That's wonderful news!", res.AIResponse)
	assert.Equal(t, response.Simple, res.Complexity)
	assert.Equal(t, ai.ModelCheap, res.Model)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, f.cheap.Calls())
	assert.Equal(t, 0, f.strong.Calls())

	classifyMsgs := f.cheap.Call(0)
	require.Len(t, classifyMsgs, 1)
	assert.Equal(t, schema.User, classifyMsgs[0].Role)
	assert.Contains(t, classifyMsgs[0].Content, "I am so excited!!")

	counts, err := f.store.EmotionCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Get(emotion.VeryHappy))
	assert.Equal(t, 1, counts.Total())

	require.Len(t, res.ChatHistory, 2)
	assert.Equal(t, modelchat.RoleUser, res.ChatHistory[0].Role)
	assert.Equal(t, "I am so excited!!", res.ChatHistory[0].Text)
	assert.Equal(t, modelchat.RoleBot, res.ChatHistory[1].Role)
	assert.Equal(t, "That's wonderful news!", res.ChatHistory[1].Text)
}

func TestAnalyzeComplexTurnUsesStrongModel(t *testing.T) {
	cheap := provider(fixed("Complexity: complex\nEmotions: [0,0,0,0,0,0,0,1]"), fixed("unused"))
	strong := provider(fixed("unused"), fixed("Let's go through it step by step."))
	f := newFixture(t, cheap, strong)

	res, err := f.svc.Analyze(context.Background(), "alice", "Explain how TCP congestion control works")
	require.NoError(t, err)

	assert.Equal(t, ai.ModelStrong, res.Model)
	assert.Equal(t, "Let's go through it step by step.", res.AIResponse)
	assert.Equal(t, 1, f.cheap.Calls())
	require.Equal(t, 1, f.strong.Calls())

	sent := f.strong.Call(0)
	require.Len(t, sent, 2)
	assert.Equal(t, ai.BuildResponsePrompt(), sent[0].Content)
	assert.Equal(t, "Explain how TCP congestion control works", sent[1].Content)
}

func TestAnalyzeClassificationFailureRecordsNothing(t *testing.T) {
	cheap := provider(failing(errors.New("connection refused")), fixed("unused"))
	strong := aitest.Reply("unused")
	f := newFixture(t, cheap, strong)
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "alice", "hello")
	require.ErrorIs(t, err, pipeline.ErrAnalysisFailed)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))

	var terr *ai.TransportError
	assert.ErrorAs(t, err, &terr)

	assert.Equal(t, 0, f.strong.Calls())
	assert.Equal(t, 0, f.store.Len())

	history, err := f.store.History(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnalyzeGenerationFailureFallsBack(t *testing.T) {
	cheap := provider(fixed("Complexity: simple\nEmotions: [0,0,1,0,0,0,0,0]"), failing(errors.New("502 bad gateway")))
	f := newFixture(t, cheap, aitest.Reply("unused"))
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, "alice", "I lost my keys")
	require.NoError(t, err)

	assert.Equal(t, response.FallbackReply, res.AIResponse)
	assert.True(t, res.Degraded)
	require.Len(t, res.ChatHistory, 2)
	assert.Equal(t, response.FallbackReply, res.ChatHistory[1].Text)

	counts, err := f.store.EmotionCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Get(emotion.Sad))
}

func TestAnalyzeUnparseableClassificationFailsSafe(t *testing.T) {
	cheap := provider(fixed("I'd rather not say."), fixed("unused"))
	strong := provider(fixed("unused"), fixed("Here's a careful answer."))
	f := newFixture(t, cheap, strong)
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, "alice", "hmm")
	require.NoError(t, err)

	assert.Equal(t, response.Complex, res.Complexity)
	assert.Equal(t, ai.ModelStrong, res.Model)
	assert.Zero(t, res.Emotions.Count())

	counts, err := f.store.EmotionCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, counts.Total())
}

func TestAnalyzeAccumulatesAcrossTurns(t *testing.T) {
	replies := []string{
		"Complexity: simple\nEmotions: [1,0,0,0,0,1,0,0]",
		"Complexity: simple\nEmotions: [0,1,0,0,0,0,0,0]",
		"Complexity: simple\nEmotions: [1,0,0,0,0,0,1,0]",
	}
	var mu sync.Mutex
	next := 0
	cheap := provider(func(string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		r := replies[next%len(replies)]
		next++
		return r, nil
	}, func(input string) (string, error) { return "re: " + input, nil })
	f := newFixture(t, cheap, aitest.Reply("unused"))
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.svc.Analyze(ctx, "alice", msg)
		require.NoError(t, err)
	}

	counts, err := f.store.EmotionCounts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Get(emotion.VeryHappy))
	assert.Equal(t, 1, counts.Get(emotion.Happy))
	assert.Equal(t, 1, counts.Get(emotion.Surprised))
	assert.Equal(t, 1, counts.Get(emotion.Normal))
	assert.Equal(t, 5, counts.Total())

	history, err := f.store.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 6)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, modelchat.RoleUser, history[i].Role)
		assert.Equal(t, modelchat.RoleBot, history[i+1].Role)
		assert.Equal(t, "re: "+history[i].Text, history[i+1].Text)
	}
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
	}
}

func TestAnalyzeConcurrentSameUser(t *testing.T) {
	cheap := provider(func(prompt string) (string, error) {
		if strings.Contains(prompt, "first message") {
			return "Complexity: simple\nEmotions: [1,0,0,0,0,0,0,0]", nil
		}
		return "Complexity: simple\nEmotions: [0,1,0,0,0,0,0,0]", nil
	}, fixed("ok"))
	f := newFixture(t, cheap, aitest.Reply("unused"))
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		user := "user-" + strings.Repeat("x", round)

		var wg sync.WaitGroup
		for _, msg := range []string{"first message", "second message"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Analyze(ctx, user, msg)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		counts, err := f.store.EmotionCounts(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 1, counts.Get(emotion.VeryHappy))
		assert.Equal(t, 1, counts.Get(emotion.Happy))
		assert.Equal(t, 2, counts.Total())

		history, err := f.store.History(ctx, user)
		require.NoError(t, err)
		require.Len(t, history, 4)
		for i := 0; i < len(history); i += 2 {
			assert.Equal(t, modelchat.RoleUser, history[i].Role)
			assert.Equal(t, modelchat.RoleBot, history[i+1].Role)
			assert.Equal(t, history[i].CreatedAt, history[i+1].CreatedAt)
		}
	}
}

func TestAnalyzeRejectsBlankInput(t *testing.T) {
	cheap := aitest.Reply("unused")
	f := newFixture(t, cheap, aitest.Reply("unused"))

	for _, tc := range []struct{ user, input string }{{"", "hi"}, {"alice", "  "}} {
		_, err := f.svc.Analyze(context.Background(), tc.user, tc.input)
		require.ErrorIs(t, err, pipeline.ErrInvalidInput)
		assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
	}
	assert.Equal(t, 0, cheap.Calls())
}

func TestAnalyzeOverlappingTurnsStayPaired(t *testing.T) {
	// Both classifications wait until both requests are in flight; "A" then
	// generates slower, so "B" is appended first although "A" arrived first.
	var arrived sync.WaitGroup
	arrived.Add(2)
	cheap := provider(func(string) (string, error) {
		arrived.Done()
		arrived.Wait()
		return "Complexity: simple\nEmotions: [0,0,0,0,0,0,1,0]", nil
	}, func(input string) (string, error) {
		if input == "A" {
			time.Sleep(30 * time.Millisecond)
		}
		return "re: " + input, nil
	})
	f := newFixture(t, cheap, aitest.Reply("unused"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, msg := range []string{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Analyze(ctx, "alice", msg)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := f.store.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, modelchat.RoleUser, history[i].Role)
		assert.Equal(t, modelchat.RoleBot, history[i+1].Role)
		assert.Equal(t, "re: "+history[i].Text, history[i+1].Text)
	}
}
