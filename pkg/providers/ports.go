// Package providers defines the capability boundaries of the voice
// pipeline (ASR, LLM, TTS) and a registry that resolves provider and
// model names to concrete adapters. Adapters are stateless across
// turns; every call receives a context and must honor cancellation.
package providers

import (
	"context"
	"errors"

	"github.com/code-100-precent/LingVoice/pkg/protocol"
)

// 错误分类，见各适配器返回约定
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrModelUnsupported    = errors.New("model unsupported")
	ErrAudioRejected       = errors.New("audio rejected")
	ErrNoSuchProvider      = errors.New("no such provider")
	ErrNoSuchModel         = errors.New("no such model")
)

// Kind 端口种类
type Kind string

const (
	KindASR Kind = "asr"
	KindLLM Kind = "llm"
	KindTTS Kind = "tts"
)

// TranscribeOptions ASR 调用参数
type TranscribeOptions struct {
	Model      string
	Format     protocol.AudioFormat
	SampleRate int
	Language   string
}

// TranscribeResult ASR 识别结果
type TranscribeResult struct {
	Text       string
	Confidence float64
}

// Transcriber ASR 端口
type Transcriber interface {
	// Transcribe 对一段完整音频做一次阻塞识别
	Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*TranscribeResult, error)
	SupportsModel(model string) bool
}

// ChatChunk LLM 流式输出片段；失败时 Err 非空且为最后一个片段
type ChatChunk struct {
	Delta       string
	Accumulated string
	Finished    bool
	Err         error
}

// ChatOptions LLM 调用参数
type ChatOptions struct {
	Model     string
	MaxTokens int
}

// ChatStreamer LLM 端口。返回的通道在流结束或出错后关闭；
// 取消 ctx 必须在有限时间内终止上游调用。
type ChatStreamer interface {
	GenerateStream(ctx context.Context, systemPrompt, userText string, opts ChatOptions) (<-chan ChatChunk, error)
	SupportsModel(model string) bool
}

// AudioChunk TTS 流式输出片段；失败时 Err 非空且为最后一个片段
type AudioChunk struct {
	Data     []byte
	Format   protocol.AudioFormat
	Finished bool
	Err      error
}

// SynthesizeOptions TTS 调用参数
type SynthesizeOptions struct {
	Model  string
	Voice  string
	Speed  float64
	Volume float64
	Format protocol.AudioFormat
}

// Synthesizer TTS 端口。返回的通道在合成结束或出错后关闭。
type Synthesizer interface {
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (<-chan AudioChunk, error)
	SupportsModel(model string) bool
}

// TranscribeStream 流式 ASR 的缓冲实现：聚齐全部音频后做一次
// 同步识别，恰好产出一个最终结果。后端支持真流式前的契约行为。
func TranscribeStream(ctx context.Context, t Transcriber, chunks <-chan []byte, opts TranscribeOptions) (<-chan TranscribeResult, <-chan error) {
	results := make(chan TranscribeResult, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(results)
		defer close(errs)
		var audio []byte
		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunk, ok := <-chunks:
				if !ok {
					res, err := t.Transcribe(ctx, audio, opts)
					if err != nil {
						errs <- err
						return
					}
					results <- *res
					return
				}
				audio = append(audio, chunk...)
			}
		}
	}()
	return results, errs
}
