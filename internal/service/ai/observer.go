package ai

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
)

// newModelObserver logs the start, end and failure of every chat model call.
func newModelObserver() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(&callbackHelper.ModelCallbackHandler{
			OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
				ev := logx.Debug().Str("component", "completion").Str("node", info.Name)
				if input != nil {
					ev = ev.Int("messages", len(input.Messages))
				}
				ev.Msg("model call started")
				return ctx
			},
			OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
				ev := logx.Debug().Str("component", "completion").Str("node", info.Name)
				if output != nil {
					if output.Message != nil {
						ev = ev.Int("content_len", len(output.Message.Content))
					}
					if output.TokenUsage != nil {
						ev = ev.Int("prompt_tokens", output.TokenUsage.PromptTokens).
							Int("completion_tokens", output.TokenUsage.CompletionTokens)
					}
				}
				ev.Msg("model call finished")
				return ctx
			},
			OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
				logx.Warn().Err(err).Str("component", "completion").Str("node", info.Name).Msg("model call failed")
				return ctx
			},
		}).
		Handler()
}
