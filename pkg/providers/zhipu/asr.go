package zhipu

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/carlmjohnson/requests"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"go.uber.org/zap"
)

// ASR 模型白名单
var asrModels = map[string]bool{
	"chirp-beta": true,
	"glm-asr":    true,
}

// Transcriber 智谱 ASR 适配器。接口是面向文件的，
// 音频先落临时文件，所有退出路径保证删除。
type Transcriber struct {
	apiKey  string
	baseURL string
	logger  *zap.Logger
}

// NewTranscriber 创建 ASR 适配器
func NewTranscriber(apiKey, baseURL string, logger *zap.Logger) *Transcriber {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Transcriber{apiKey: apiKey, baseURL: baseURL, logger: logger}
}

// SupportsModel 是否支持指定模型
func (t *Transcriber) SupportsModel(model string) bool {
	return asrModels[model]
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe 一次阻塞识别
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, opts providers.TranscribeOptions) (*providers.TranscribeResult, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", providers.ErrAudioRejected)
	}
	// 接口只认带容器的文件，裸 PCM 先包成 WAV
	ext := opts.Format.String()
	if opts.Format == protocol.FormatPCM16LE {
		sampleRate := opts.SampleRate
		if sampleRate <= 0 {
			sampleRate = media.InputSampleRate
		}
		wrapped, err := media.EncodeWAV(audio, sampleRate, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", providers.ErrAudioRejected, err)
		}
		audio = wrapped
		ext = protocol.FormatWAV.String()
	}

	tmp, err := os.CreateTemp("", "lingvoice-asr-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp audio file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.Write(audio); err != nil {
		return nil, fmt.Errorf("write temp audio file: %w", err)
	}

	body, contentType, err := t.multipartBody(tmp.Name(), ext, opts)
	if err != nil {
		return nil, err
	}

	var resp transcriptionResponse
	err = requests.
		URL(t.baseURL+"/audio/transcriptions").
		Method(http.MethodPost).
		Header("Authorization", "Bearer "+t.apiKey).
		ContentType(contentType).
		BodyBytes(body).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		t.logger.Error("ASR 请求失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", providers.ErrProviderUnavailable, err)
	}
	return &providers.TranscribeResult{Text: resp.Text, Confidence: 1}, nil
}

func (t *Transcriber) multipartBody(path, ext string, opts providers.TranscribeOptions) ([]byte, string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read temp audio file: %w", err)
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "audio."+ext)
	if err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	_ = w.WriteField("model", opts.Model)
	if opts.Language != "" {
		_ = w.WriteField("language", opts.Language)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
