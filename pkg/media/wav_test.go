package media

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVRoundTrip(t *testing.T) {
	pcm := make([]int16, InputSampleRate/10) // 100ms
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(InputSampleRate)))
	}
	raw := PCM16ToBytes(pcm)

	wavData, err := EncodeWAV(raw, InputSampleRate, 1)
	require.NoError(t, err)
	assert.Greater(t, len(wavData), len(raw), "容器必须带头部")

	decoded, sampleRate, channels, err := DecodeWAV(wavData)
	require.NoError(t, err)
	assert.Equal(t, InputSampleRate, sampleRate)
	assert.Equal(t, 1, channels)
	assert.Equal(t, raw, decoded)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeWAV([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}
