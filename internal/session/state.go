package session

import (
	"sync"

	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/spf13/cast"
)

// Phase 会话所处的管线阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseReceiving
	PhaseTranscribing
	PhaseGenerating
	PhaseSynthesizing
	PhaseAborted
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReceiving:
		return "receiving"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseGenerating:
		return "generating"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseAborted:
		return "aborted"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConversationConfig 每会话对话配置，回合开始时解析生效
type ConversationConfig struct {
	ASRProvider string
	ASRModel    string
	LLMProvider string
	LLMModel    string
	TTSProvider string
	TTSModel    string
	TTSVoice    string
	CharacterID string
	MaxTokens   int
}

// ApplyOptions 用连接参数覆盖默认配置，未知键忽略
func (c *ConversationConfig) ApplyOptions(opts map[string]interface{}) {
	for key, val := range opts {
		switch key {
		case "asrProvider":
			c.ASRProvider = cast.ToString(val)
		case "asrModel":
			c.ASRModel = cast.ToString(val)
		case "llmProvider":
			c.LLMProvider = cast.ToString(val)
		case "llmModel":
			c.LLMModel = cast.ToString(val)
		case "ttsProvider":
			c.TTSProvider = cast.ToString(val)
		case "ttsModel":
			c.TTSModel = cast.ToString(val)
		case "ttsVoice":
			c.TTSVoice = cast.ToString(val)
		case "characterId":
			c.CharacterID = cast.ToString(val)
		case "maxTokens":
			if n := cast.ToInt(val); n > 0 {
				c.MaxTokens = n
			}
		}
	}
}

// state 会话可变状态。只被本会话的分发与编排协程改写，
// 跨协程访问一律经过这里的互斥量。
type state struct {
	mu          sync.Mutex
	phase       Phase
	audioBuf    []byte
	audioFormat protocol.AudioFormat
	turnID      uint64
	ttsSeq      uint64
}

func (s *state) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *state) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.phase = p
}

// beginAudio 开始接收一段用户语音
func (s *state) beginAudio(format protocol.AudioFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.phase = PhaseReceiving
	s.audioBuf = s.audioBuf[:0]
	s.audioFormat = format
}

// appendAudio 追加一帧用户语音
func (s *state) appendAudio(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBuf = append(s.audioBuf, data...)
}

// finishAudio 取走整段语音并清空缓冲
func (s *state) finishAudio() ([]byte, protocol.AudioFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio := make([]byte, len(s.audioBuf))
	copy(audio, s.audioBuf)
	s.audioBuf = s.audioBuf[:0]
	return audio, s.audioFormat
}

// settleIdle 回合收尾时回到空闲。拾音中说明新一段语音已经开始，
// 不能覆盖，否则缓冲里会留着非 Receiving 状态的音频
func (s *state) settleIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed || s.phase == PhaseReceiving {
		return
	}
	s.phase = PhaseIdle
}

// receiving 是否处于拾音阶段
func (s *state) receiving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseReceiving
}

// nextTurnID 进入新回合：序号 +1，TTS 序号归零
func (s *state) nextTurnID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnID++
	s.ttsSeq = 0
	return s.turnID
}

// currentTurnID 当前回合序号
func (s *state) currentTurnID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID
}

// nextTTSSeq 分配下一个回合内 TTS 帧序号（0 起）
func (s *state) nextTTSSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.ttsSeq
	s.ttsSeq++
	return seq
}

// ttsEmitted 本回合是否已发出过 TTS 帧
func (s *state) ttsEmitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttsSeq > 0
}

func (s *state) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseClosed
	s.audioBuf = nil
}

func (s *state) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseClosed
}
