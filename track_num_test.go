package gowebm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTrackNum(t *testing.T) {
	for v := uint64(1); v <= 126; v++ {
		n, err := NewTrackNum(v)
		require.NoError(t, err)
		require.Equal(t, v, n.Uint64())
	}

	for _, v := range []uint64{0, 127, 123456} {
		_, err := NewTrackNum(v)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrTrackNumOutOfRange))
	}
}

func TestTrackNumString(t *testing.T) {
	n, err := NewTrackNum(42)
	require.NoError(t, err)
	require.Equal(t, "42", n.String())
}

func TestCodecIDString(t *testing.T) {
	require.Equal(t, "V_VP8", VideoCodecVP8.String())
	require.Equal(t, "V_VP9", VideoCodecVP9.String())
	require.Equal(t, "V_AV1", VideoCodecAV1.String())
	require.Equal(t, "unknown", VideoCodecID(10).String())
	require.Equal(t, "A_OPUS", AudioCodecOpus.String())
	require.Equal(t, "A_VORBIS", AudioCodecVorbis.String())
	require.Equal(t, "unknown", AudioCodecID(10).String())
}
