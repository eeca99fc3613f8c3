// Package protocol implements the binary frame layout shared by the
// mobile client and the server. Each binary WebSocket message is a
// 1-byte type discriminator followed by a 4-byte header and the raw
// audio payload:
//
//	[type][0x4D][flags][format][reserved][payload...]
//
// type 0x01 carries user audio upstream, 0x02 carries synthesized
// audio downstream. flags bit 0 marks the final frame of a logical
// stream (end of user utterance / end of assistant turn).
package protocol

import (
	"errors"
	"fmt"
)

// Magic 帧头魔数
const Magic = 0x4D

// 帧类型
const (
	FrameAudioInput byte = 0x01
	FrameTTSOutput  byte = 0x02
)

// flags 位
const flagFinal = 0x01

// AudioFormat 音频负载编码
type AudioFormat byte

const (
	FormatUnknown AudioFormat = 0
	FormatOpus    AudioFormat = 1
	FormatPCM16LE AudioFormat = 2
	FormatWAV     AudioFormat = 3
	FormatMP3     AudioFormat = 4
	FormatWebM    AudioFormat = 5
)

func (f AudioFormat) String() string {
	switch f {
	case FormatOpus:
		return "opus"
	case FormatPCM16LE:
		return "pcm16le"
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatWebM:
		return "webm"
	default:
		return "unknown"
	}
}

// ErrMalformedFrame 帧太短、魔数不匹配或类型未知
var ErrMalformedFrame = errors.New("malformed binary frame")

// headerLen 类型字节 + 4 字节帧头
const headerLen = 5

// Frame 一条已解析的二进制帧
type Frame struct {
	Type    byte
	Final   bool
	Format  AudioFormat
	Payload []byte
}

// Encode 序列化为线上格式
func (f *Frame) Encode() []byte {
	buf := make([]byte, headerLen+len(f.Payload))
	buf[0] = f.Type
	buf[1] = Magic
	if f.Final {
		buf[2] = flagFinal
	}
	buf[3] = byte(f.Format)
	buf[4] = 0x00
	copy(buf[headerLen:], f.Payload)
	return buf
}

// Parse 解析一条二进制帧；负载不复制，与 data 共享底层数组
func Parse(data []byte) (*Frame, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedFrame, len(data))
	}
	if data[1] != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%02X", ErrMalformedFrame, data[1])
	}
	frameType := data[0]
	if frameType != FrameAudioInput && frameType != FrameTTSOutput {
		return nil, fmt.Errorf("%w: unknown frame type 0x%02X", ErrMalformedFrame, frameType)
	}
	return &Frame{
		Type:    frameType,
		Final:   data[2]&flagFinal != 0,
		Format:  AudioFormat(data[3]),
		Payload: data[headerLen:],
	}, nil
}

// EncodeTTSFrame 编码一条下行 TTS 帧（负载为单个 Opus 包）
func EncodeTTSFrame(opusPacket []byte, final bool) []byte {
	f := Frame{Type: FrameTTSOutput, Final: final, Format: FormatOpus, Payload: opusPacket}
	return f.Encode()
}
