package media

import (
	"fmt"
	"sync"

	"github.com/hraban/opus"
)

// TTS 下行音频的固定参数：24kHz 单声道，20ms 一帧
const (
	OpusSampleRate    = 24000
	OpusChannels      = 1
	OpusFrameSamples  = 480 // 20ms @ 24kHz
	opusMaxPacketSize = 1275
)

// OpusCoder PCM↔Opus 重编码器。按 20ms 帧粒度工作；
// 编码输入必须是 480 采样的整数倍，末尾残帧由调用方补零。
type OpusCoder struct {
	mu  sync.Mutex
	enc *opus.Encoder
	dec *opus.Decoder
}

// NewOpusCoder 创建重编码器
func NewOpusCoder() (*OpusCoder, error) {
	enc, err := opus.NewEncoder(OpusSampleRate, OpusChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(64000); err != nil {
		return nil, fmt.Errorf("set opus bitrate: %w", err)
	}
	dec, err := opus.NewDecoder(OpusSampleRate, OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusCoder{enc: enc, dec: dec}, nil
}

// EncodePCM 把 PCM 采样编码为一串 20ms Opus 包。
// 采样数不是帧长整数倍时，末帧补零到帧边界。
func (c *OpusCoder) EncodePCM(pcm []int16) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var packets [][]byte
	for off := 0; off < len(pcm); off += OpusFrameSamples {
		frame := pcm[off:min(off+OpusFrameSamples, len(pcm))]
		if len(frame) < OpusFrameSamples {
			padded := make([]int16, OpusFrameSamples)
			copy(padded, frame)
			frame = padded
		}
		buf := make([]byte, opusMaxPacketSize)
		n, err := c.enc.Encode(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		packets = append(packets, buf[:n])
	}
	return packets, nil
}

// DecodePacket 解码单个 Opus 包为 PCM 采样
func (c *OpusCoder) DecodePacket(packet []byte) ([]int16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pcm := make([]int16, OpusFrameSamples)
	n, err := c.dec.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return pcm[:n*OpusChannels], nil
}

// DecodePackets 依次解码多个 Opus 包
func (c *OpusCoder) DecodePackets(packets [][]byte) ([]int16, error) {
	var pcm []int16
	for _, p := range packets {
		samples, err := c.DecodePacket(p)
		if err != nil {
			return nil, err
		}
		pcm = append(pcm, samples...)
	}
	return pcm, nil
}
