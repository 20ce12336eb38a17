package gowebm

import (
	"math"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
)

// VideoCodecID is the codec of a video track.
type VideoCodecID int

// video codecs.
const (
	VideoCodecVP8 VideoCodecID = iota
	VideoCodecVP9
	VideoCodecAV1
)

// String implements fmt.Stringer.
// It returns the Matroska CodecID.
func (c VideoCodecID) String() string {
	switch c {
	case VideoCodecVP8:
		return "V_VP8"
	case VideoCodecVP9:
		return "V_VP9"
	case VideoCodecAV1:
		return "V_AV1"
	}
	return "unknown"
}

func (c VideoCodecID) id() uint32 {
	switch c {
	case VideoCodecVP8:
		return mkvmuxer.VP8CodecID
	case VideoCodecVP9:
		return mkvmuxer.VP9CodecID
	case VideoCodecAV1:
		return mkvmuxer.AV1CodecID
	}
	return math.MaxUint32
}

// AudioCodecID is the codec of an audio track.
type AudioCodecID int

// audio codecs.
const (
	AudioCodecOpus AudioCodecID = iota
	AudioCodecVorbis
)

// String implements fmt.Stringer.
// It returns the Matroska CodecID.
func (c AudioCodecID) String() string {
	switch c {
	case AudioCodecOpus:
		return "A_OPUS"
	case AudioCodecVorbis:
		return "A_VORBIS"
	}
	return "unknown"
}

func (c AudioCodecID) id() uint32 {
	switch c {
	case AudioCodecOpus:
		return mkvmuxer.OpusCodecID
	case AudioCodecVorbis:
		return mkvmuxer.VorbisCodecID
	}
	return math.MaxUint32
}
