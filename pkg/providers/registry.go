package providers

import (
	"fmt"
	"sync"
)

// Registry 把 (kind, providerName, model) 解析为具体适配器。
// 初始化完成后只读，查找无锁。
type Registry struct {
	mu           sync.Mutex
	sealed       bool
	transcribers map[string]Transcriber
	streamers    map[string]ChatStreamer
	synthesizers map[string]Synthesizer
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		transcribers: make(map[string]Transcriber),
		streamers:    make(map[string]ChatStreamer),
		synthesizers: make(map[string]Synthesizer),
	}
}

// RegisterASR 注册 ASR 适配器；Seal 之后调用会 panic
func (r *Registry) RegisterASR(name string, t Transcriber) {
	r.register(func() { r.transcribers[name] = t })
}

// RegisterLLM 注册 LLM 适配器
func (r *Registry) RegisterLLM(name string, s ChatStreamer) {
	r.register(func() { r.streamers[name] = s })
}

// RegisterTTS 注册 TTS 适配器
func (r *Registry) RegisterTTS(name string, s Synthesizer) {
	r.register(func() { r.synthesizers[name] = s })
}

func (r *Registry) register(put func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("providers: register after Seal")
	}
	put()
}

// Seal 冻结注册表，此后只读
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// ASR 解析 ASR 适配器
func (r *Registry) ASR(name, model string) (Transcriber, error) {
	t, ok := r.transcribers[name]
	if !ok {
		return nil, fmt.Errorf("%w: asr %q", ErrNoSuchProvider, name)
	}
	if !t.SupportsModel(model) {
		return nil, fmt.Errorf("%w: asr %q model %q", ErrNoSuchModel, name, model)
	}
	return t, nil
}

// LLM 解析 LLM 适配器
func (r *Registry) LLM(name, model string) (ChatStreamer, error) {
	s, ok := r.streamers[name]
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrNoSuchProvider, name)
	}
	if !s.SupportsModel(model) {
		return nil, fmt.Errorf("%w: llm %q model %q", ErrNoSuchModel, name, model)
	}
	return s, nil
}

// TTS 解析 TTS 适配器
func (r *Registry) TTS(name, model string) (Synthesizer, error) {
	s, ok := r.synthesizers[name]
	if !ok {
		return nil, fmt.Errorf("%w: tts %q", ErrNoSuchProvider, name)
	}
	if !s.SupportsModel(model) {
		return nil, fmt.Errorf("%w: tts %q model %q", ErrNoSuchModel, name, model)
	}
	return s, nil
}
