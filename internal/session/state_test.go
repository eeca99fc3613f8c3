package session

import (
	"testing"

	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/stretchr/testify/assert"
)

func TestApplyOptionsOverridesDefaults(t *testing.T) {
	cfg := ConversationConfig{
		ASRProvider: "zhipu", ASRModel: "chirp-beta",
		LLMProvider: "zhipu", LLMModel: "glm-4-flash",
		TTSProvider: "zhipu", TTSModel: "glm-tts", TTSVoice: "female",
		CharacterID: "default", MaxTokens: 256,
	}
	cfg.ApplyOptions(map[string]interface{}{
		"llmModel":    "glm-4-plus",
		"ttsVoice":    "male",
		"characterId": "storyteller",
		"maxTokens":   "128",
		"unknownKey":  "ignored",
	})

	assert.Equal(t, "glm-4-plus", cfg.LLMModel)
	assert.Equal(t, "male", cfg.TTSVoice)
	assert.Equal(t, "storyteller", cfg.CharacterID)
	assert.Equal(t, 128, cfg.MaxTokens)
	assert.Equal(t, "chirp-beta", cfg.ASRModel)
}

func TestApplyOptionsRejectsNonPositiveMaxTokens(t *testing.T) {
	cfg := ConversationConfig{MaxTokens: 256}
	cfg.ApplyOptions(map[string]interface{}{"maxTokens": "0"})
	assert.Equal(t, 256, cfg.MaxTokens)
	cfg.ApplyOptions(map[string]interface{}{"maxTokens": "-5"})
	assert.Equal(t, 256, cfg.MaxTokens)
}

func TestAudioBufferLifecycle(t *testing.T) {
	var st state
	assert.False(t, st.receiving())

	st.beginAudio(protocol.FormatWebM)
	assert.True(t, st.receiving())
	st.appendAudio([]byte{1, 2})
	st.appendAudio([]byte{3})

	audio, format := st.finishAudio()
	assert.Equal(t, []byte{1, 2, 3}, audio)
	assert.Equal(t, protocol.FormatWebM, format)

	// 取走后缓冲清空，新一段从头累积
	st.beginAudio(protocol.FormatOpus)
	st.appendAudio([]byte{9})
	audio, format = st.finishAudio()
	assert.Equal(t, []byte{9}, audio)
	assert.Equal(t, protocol.FormatOpus, format)
}

func TestTurnIDMonotonicAndResetsTTSSeq(t *testing.T) {
	var st state
	assert.Equal(t, uint64(1), st.nextTurnID())
	assert.Equal(t, uint64(0), st.nextTTSSeq())
	assert.Equal(t, uint64(1), st.nextTTSSeq())
	assert.True(t, st.ttsEmitted())

	assert.Equal(t, uint64(2), st.nextTurnID())
	assert.False(t, st.ttsEmitted())
	assert.Equal(t, uint64(0), st.nextTTSSeq())
}

func TestClosedStateIsTerminal(t *testing.T) {
	var st state
	st.close()
	assert.Equal(t, PhaseClosed, st.Phase())
	st.setPhase(PhaseIdle)
	assert.Equal(t, PhaseClosed, st.Phase())
	st.beginAudio(protocol.FormatOpus)
	assert.Equal(t, PhaseClosed, st.Phase())
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseIdle:         "idle",
		PhaseReceiving:    "receiving",
		PhaseTranscribing: "transcribing",
		PhaseGenerating:   "generating",
		PhaseSynthesizing: "synthesizing",
		PhaseAborted:      "aborted",
		PhaseClosed:       "closed",
		Phase(99):         "unknown",
	}
	for phase, want := range cases {
		assert.Equal(t, want, phase.String())
	}
}
