package media

import (
	"math"
	"testing"
)

// TestPCM16BytesRoundTrip 测试采样与字节流互转
func TestPCM16BytesRoundTrip(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768, 12345}
	got := BytesToPCM16(PCM16ToBytes(pcm))
	if len(got) != len(pcm) {
		t.Fatalf("length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], pcm[i])
		}
	}
}

// TestBytesToPCM16OddLength 奇数字节截断尾部
func TestBytesToPCM16OddLength(t *testing.T) {
	if got := BytesToPCM16([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Errorf("length = %d, want 1", len(got))
	}
}

// TestOpusRoundTrip 24kHz 单声道正弦波，帧对齐后编解码长度不变
func TestOpusRoundTrip(t *testing.T) {
	coder, err := NewOpusCoder()
	if err != nil {
		t.Fatalf("NewOpusCoder: %v", err)
	}

	// 100ms 440Hz 正弦波，正好 5 帧
	pcm := make([]int16, OpusFrameSamples*5)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/OpusSampleRate))
	}

	packets, err := coder.EncodePCM(pcm)
	if err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	if len(packets) != 5 {
		t.Fatalf("packets = %d, want 5", len(packets))
	}

	decoded, err := coder.DecodePackets(packets)
	if err != nil {
		t.Fatalf("DecodePackets: %v", err)
	}
	if len(decoded) != len(pcm) {
		t.Errorf("decoded length = %d, want %d", len(decoded), len(pcm))
	}
}

// TestOpusEncodePadsResidual 残帧补零到帧边界
func TestOpusEncodePadsResidual(t *testing.T) {
	coder, err := NewOpusCoder()
	if err != nil {
		t.Fatalf("NewOpusCoder: %v", err)
	}
	packets, err := coder.EncodePCM(make([]int16, OpusFrameSamples+100))
	if err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	if len(packets) != 2 {
		t.Errorf("packets = %d, want 2", len(packets))
	}
}
