// Package zhipu implements the default provider adapters against the
// Zhipu open platform. The chat endpoint is OpenAI-compatible, so the
// LLM adapter rides on go-openai with a custom base URL.
package zhipu

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/code-100-precent/LingVoice/pkg/providers"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// 聊天模型白名单
var chatModels = map[string]bool{
	"glm-4-flash": true,
	"glm-4-air":   true,
	"glm-4-plus":  true,
	"glm-4":       true,
}

// ChatProvider 智谱 LLM 适配器
type ChatProvider struct {
	client *openai.Client
	logger *zap.Logger
}

// NewChatProvider 创建 LLM 适配器
func NewChatProvider(apiKey, baseURL string, logger *zap.Logger) *ChatProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &ChatProvider{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// SupportsModel 是否支持指定模型
func (p *ChatProvider) SupportsModel(model string) bool {
	return chatModels[model]
}

// GenerateStream 流式生成。通道在流结束或出错后关闭；
// ctx 取消会在下一次 Recv 处终止上游调用。
func (p *ChatProvider) GenerateStream(ctx context.Context, systemPrompt, userText string, opts providers.ChatOptions) (<-chan providers.ChatChunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     opts.Model,
		MaxTokens: opts.MaxTokens,
		Stream:    true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrProviderUnavailable, err)
	}

	out := make(chan providers.ChatChunk, 8)
	go func() {
		defer close(out)
		defer stream.Close()
		var accumulated string
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- providers.ChatChunk{Accumulated: accumulated, Finished: true}
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					// 取消不是错误，静默收尾
					return
				}
				p.logger.Error("LLM 流读取失败", zap.Error(err))
				out <- providers.ChatChunk{Accumulated: accumulated, Err: fmt.Errorf("llm stream: %w", err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			accumulated += delta
			select {
			case out <- providers.ChatChunk{Delta: delta, Accumulated: accumulated}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
