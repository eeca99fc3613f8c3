package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	wav "github.com/youpy/go-wav"
)

// InputSampleRate 上行麦克风 PCM 的默认采样率
const InputSampleRate = 16000

// BytesToPCM16 把小端 16bit 字节流转为采样序列，奇数字节截断
func BytesToPCM16(data []byte) []int16 {
	n := len(data) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm
}

// PCM16ToBytes 采样序列转小端字节流
func PCM16ToBytes(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// EncodeWAV 把 PCM16LE 字节流包进 WAV 容器。
// 面向文件的识别接口不收裸 PCM，上传前用它补上头
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	var buf bytes.Buffer
	numSamples := uint32(len(pcm) / 2 / channels)
	w := wav.NewWriter(&buf, numSamples, uint16(channels), uint32(sampleRate), 16)
	if _, err := w.Write(pcm); err != nil {
		return nil, fmt.Errorf("write wav data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV 解析 WAV 容器，返回 PCM 数据与声音参数
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, channels int, err error) {
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read wav format: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, 0, 0, fmt.Errorf("read wav data: %w", err)
	}
	return buf.Bytes(), int(format.SampleRate), int(format.NumChannels), nil
}
