package session

import (
	"context"
	"time"

	"github.com/code-100-precent/LingVoice/pkg/character"
	"github.com/code-100-precent/LingVoice/pkg/events"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/protocol"
	"github.com/code-100-precent/LingVoice/pkg/providers"
	"github.com/code-100-precent/LingVoice/pkg/segment"
	"go.uber.org/zap"
)

const (
	// providerTimeout 单次上游调用的硬超时
	providerTimeout = 30 * time.Second
	// sentenceQueueCap 切分好的句子在合成工人前的排队上限，
	// 写满后生成侧背压等待
	sentenceQueueCap = 8
)

// startTextTurn 文本输入直接进入生成阶段
func (s *Session) startTextTurn(text string) {
	s.startTurn(func(ctx context.Context, turnID uint64) {
		s.logger.Info("[Session] 开始文本回合",
			zap.Uint64("turn_id", turnID), zap.Int("text_len", len(text)))
		s.generate(ctx, turnID, text)
	})
}

// startAudioTurn 取走已收齐的语音，先识别再进入生成阶段
func (s *Session) startAudioTurn() {
	audio, format := s.st.finishAudio()
	s.startTurn(func(ctx context.Context, turnID uint64) {
		s.logger.Info("[Session] 开始语音回合",
			zap.Uint64("turn_id", turnID),
			zap.Int("audio_bytes", len(audio)),
			zap.String("format", format.String()))
		text, ok := s.transcribe(ctx, turnID, audio, format)
		if !ok {
			return
		}
		s.generate(ctx, turnID, text)
	})
}

// transcribe 语音识别阶段，结果同步回推给客户端
func (s *Session) transcribe(ctx context.Context, turnID uint64, audio []byte, format protocol.AudioFormat) (string, bool) {
	asr, err := s.registry.ASR(s.cfg.ASRProvider, s.cfg.ASRModel)
	if err != nil {
		s.logger.Error("[Session] 解析 ASR 提供方失败", zap.Error(err))
		s.writer.SendError("语音识别服务不可用")
		return "", false
	}
	s.st.setPhase(PhaseTranscribing)

	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	result, err := asr.Transcribe(callCtx, audio, providers.TranscribeOptions{
		Model:      s.cfg.ASRModel,
		Format:     format,
		SampleRate: media.InputSampleRate,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		s.logger.Error("[Session] 语音识别失败", zap.Uint64("turn_id", turnID), zap.Error(err))
		s.writer.SendError("语音识别失败")
		return "", false
	}
	if result.Text == "" {
		s.writer.SendSTT(turnID, "", true)
		s.logger.Info("[Session] 识别结果为空，回合结束", zap.Uint64("turn_id", turnID))
		return "", false
	}
	s.writer.SendSTT(turnID, result.Text, true)
	return result.Text, true
}

// generate 生成与合成阶段：LLM token 流经切分器产出句子，
// 串行合成工人逐句转 Opus 下发。任一侧失败中止整个回合。
func (s *Session) generate(ctx context.Context, turnID uint64, userText string) {
	llm, err := s.registry.LLM(s.cfg.LLMProvider, s.cfg.LLMModel)
	if err != nil {
		s.logger.Error("[Session] 解析 LLM 提供方失败", zap.Error(err))
		s.writer.SendError("对话服务不可用")
		return
	}
	tts, err := s.registry.TTS(s.cfg.TTSProvider, s.cfg.TTSModel)
	if err != nil {
		s.logger.Error("[Session] 解析 TTS 提供方失败", zap.Error(err))
		s.writer.SendError("语音合成服务不可用")
		return
	}
	card, ok := s.characters.Get(s.cfg.CharacterID)
	if !ok {
		s.logger.Warn("[Session] 角色不存在，使用默认角色",
			zap.String("character_id", s.cfg.CharacterID))
		card, _ = s.characters.Get("default")
	}
	systemPrompt := character.BuildSystemPrompt(card, s.cfg.MaxTokens)

	s.st.setPhase(PhaseGenerating)
	llmCtx, cancelLLM := context.WithTimeout(ctx, providerTimeout)
	defer cancelLLM()
	chunks, err := llm.GenerateStream(llmCtx, systemPrompt, userText, providers.ChatOptions{
		Model:     s.cfg.LLMModel,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("[Session] 发起对话生成失败", zap.Uint64("turn_id", turnID), zap.Error(err))
		s.writer.SendError("对话生成失败")
		return
	}

	synthCtx, cancelSynth := context.WithCancel(ctx)
	defer cancelSynth()
	sentences := make(chan string, sentenceQueueCap)
	synthDone := make(chan error, 1)
	go func() {
		synthDone <- s.synthesize(synthCtx, turnID, tts, sentences)
	}()

	seg := segment.New()
	index := 0
	accumulated := ""
	emit := func(sentence string) bool {
		s.writer.SendSentenceEnd(turnID, sentence, index)
		index++
		select {
		case sentences <- sentence:
			return true
		case <-ctx.Done():
			return false
		case err := <-synthDone:
			synthDone <- err
			return false
		}
	}

	llmFailed := false
consume:
	for {
		select {
		case <-ctx.Done():
			cancelSynth()
			<-synthDone
			return
		case werr := <-synthDone:
			// 合成侧提前退出只可能是失败
			synthDone <- werr
			break consume
		case chunk, ok := <-chunks:
			if !ok {
				break consume
			}
			if chunk.Err != nil {
				if ctx.Err() != nil {
					cancelSynth()
					<-synthDone
					return
				}
				s.logger.Error("[Session] 对话生成中断",
					zap.Uint64("turn_id", turnID), zap.Error(chunk.Err))
				s.writer.SendError("对话生成失败")
				llmFailed = true
				break consume
			}
			if chunk.Delta != "" {
				accumulated += chunk.Delta
				s.writer.SendLLMToken(turnID, chunk.Delta, accumulated, false)
				for _, sentence := range seg.Push(chunk.Delta) {
					if !emit(sentence) {
						break consume
					}
				}
			}
			if chunk.Finished {
				s.writer.SendLLMToken(turnID, "", accumulated, true)
				if rest := seg.Flush(); rest != "" {
					emit(rest)
				}
				break consume
			}
		}
	}

	if llmFailed {
		cancelSynth()
		<-synthDone
		s.finishFailedTurn(turnID)
		return
	}
	close(sentences)
	werr := <-synthDone
	if ctx.Err() != nil {
		return
	}
	if werr != nil {
		s.logger.Error("[Session] 语音合成失败", zap.Uint64("turn_id", turnID), zap.Error(werr))
		s.writer.SendError("语音合成失败")
		s.finishFailedTurn(turnID)
		return
	}
	s.logger.Info("[Session] 回合完成",
		zap.Uint64("turn_id", turnID),
		zap.Int("sentences", index),
		zap.Int("reply_len", len(accumulated)))
	events.PublishEvent(events.TurnCompleted, map[string]interface{}{
		"session_id": s.id,
		"turn_id":    turnID,
		"sentences":  index,
	}, "session")
}

// finishFailedTurn 失败中止时补一个空的收尾帧，
// 让已经收到音频的客户端能干净地结束这一轮播放
func (s *Session) finishFailedTurn(turnID uint64) {
	if s.st.ttsEmitted() {
		s.st.nextTTSSeq()
		s.writer.SendTTSFrame(turnID, nil, true)
	}
}

// synthesize 串行合成工人。PCM 跨句累积，按 20ms 帧边界切出
// Opus 包；最后一个包延迟一拍发送以便携带 final 标记，
// 残余采样只在回合收尾时补零。
func (s *Session) synthesize(ctx context.Context, turnID uint64, tts providers.Synthesizer, sentences <-chan string) error {
	var pcmResidual []byte
	var held []byte

	send := func(packet []byte, final bool) {
		s.st.nextTTSSeq()
		s.writer.SendTTSFrame(turnID, packet, final)
	}
	push := func(packet []byte) {
		if held != nil {
			send(held, false)
		}
		held = packet
	}
	encodeAligned := func() error {
		frameBytes := media.OpusFrameSamples * 2
		n := len(pcmResidual) / frameBytes * frameBytes
		if n == 0 {
			return nil
		}
		packets, err := s.coder.EncodePCM(media.BytesToPCM16(pcmResidual[:n]))
		if err != nil {
			return err
		}
		pcmResidual = pcmResidual[n:]
		for _, p := range packets {
			push(p)
		}
		return nil
	}

	for {
		var sentence string
		var open bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sentence, open = <-sentences:
		}
		if !open {
			break
		}

		s.st.setPhase(PhaseSynthesizing)
		callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		stream, err := tts.SynthesizeStream(callCtx, sentence, providers.SynthesizeOptions{
			Model:  s.cfg.TTSModel,
			Voice:  s.cfg.TTSVoice,
			Format: protocol.FormatPCM16LE,
		})
		if err != nil {
			cancel()
			return err
		}
		for chunk := range stream {
			if chunk.Err != nil {
				cancel()
				return chunk.Err
			}
			if len(chunk.Data) == 0 {
				continue
			}
			pcmResidual = append(pcmResidual, chunk.Data...)
			if err := encodeAligned(); err != nil {
				cancel()
				return err
			}
		}
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	// 回合收尾：残余采样补零成一帧，末包携带 final
	if len(pcmResidual) > 0 {
		packets, err := s.coder.EncodePCM(media.BytesToPCM16(pcmResidual))
		if err != nil {
			return err
		}
		for _, p := range packets {
			push(p)
		}
	}
	if held != nil {
		send(held, true)
	} else {
		// 整个回合没有合成出任何音频，也要给客户端一个收尾帧
		send(nil, true)
	}
	return nil
}
