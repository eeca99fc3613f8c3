package zhipu

import (
	"context"
	"fmt"
	"io"

	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// TTS 模型白名单
var ttsModels = map[string]bool{
	"glm-tts":  true,
	"cogtts-1": true,
}

// ttsChunkSize 每个流式音频片段的字节数（PCM16LE @ 24kHz 约 85ms）
const ttsChunkSize = 4096

// Synthesizer 智谱 TTS 适配器，流式读取语音合成响应体
type Synthesizer struct {
	client  *resty.Client
	apiKey  string
	baseURL string
}

// NewSynthesizer 创建 TTS 适配器
func NewSynthesizer(apiKey, baseURL string) *Synthesizer {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Synthesizer{
		client:  resty.New(),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// SupportsModel 是否支持指定模型
func (s *Synthesizer) SupportsModel(model string) bool {
	return ttsModels[model]
}

type ttsRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// SynthesizeStream 流式合成。响应体分块送出，最后一个片段带 Finished。
func (s *Synthesizer) SynthesizeStream(ctx context.Context, text string, opts providers.SynthesizeOptions) (<-chan providers.AudioChunk, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetBody(&ttsRequest{
			Model:          opts.Model,
			Input:          text,
			Voice:          opts.Voice,
			Speed:          opts.Speed,
			Volume:         opts.Volume,
			ResponseFormat: opts.Format.String(),
		}).
		SetDoNotParseResponse(true).
		Post(s.baseURL + "/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrProviderUnavailable, err)
	}
	if resp.StatusCode() >= 400 {
		resp.RawBody().Close()
		return nil, fmt.Errorf("%w: tts http %d", providers.ErrProviderUnavailable, resp.StatusCode())
	}

	out := make(chan providers.AudioChunk, 8)
	go func() {
		body := resp.RawBody()
		defer body.Close()
		defer close(out)
		for {
			buf := make([]byte, ttsChunkSize)
			n, err := io.ReadFull(body, buf)
			if n > 0 {
				chunk := providers.AudioChunk{Data: buf[:n], Format: opts.Format}
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				select {
				case out <- providers.AudioChunk{Format: opts.Format, Finished: true}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.WithError(err).Error("TTS 流读取失败")
				out <- providers.AudioChunk{Err: fmt.Errorf("tts stream: %w", err)}
				return
			}
		}
	}()
	return out, nil
}

// 确保实现端口
var (
	_ providers.Synthesizer  = (*Synthesizer)(nil)
	_ providers.ChatStreamer = (*ChatProvider)(nil)
	_ providers.Transcriber  = (*Transcriber)(nil)
)
