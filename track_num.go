package gowebm

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
)

// ErrTrackNumOutOfRange is returned when a track number is not in [1, 126].
var ErrTrackNumOutOfRange = errors.New("track number out of range")

// TrackNum is the Matroska-level number of a track.
// Valid numbers are in [1, 126]; the zero value is not a valid number.
type TrackNum struct {
	v uint64
}

// NewTrackNum allocates a TrackNum.
//
// Matroska allows 64-bit track numbers, but the muxing engine only
// accepts [1, 126].
func NewTrackNum(v uint64) (TrackNum, error) {
	if v == 0 || v > mkvmuxer.MaxTrackNumber {
		return TrackNum{}, errors.Wrapf(ErrTrackNumOutOfRange, "invalid track number %d", v)
	}
	return TrackNum{v: v}, nil
}

// Uint64 returns the numeric value.
func (n TrackNum) Uint64() uint64 {
	return n.v
}

// String implements fmt.Stringer.
func (n TrackNum) String() string {
	return strconv.FormatUint(n.v, 10)
}

// VideoTrackNum is the number of a video track.
// It can only be obtained from Segment.AddVideoTrack.
type VideoTrackNum struct {
	n TrackNum
}

// TrackNum returns the underlying track number.
func (t VideoTrackNum) TrackNum() TrackNum {
	return t.n
}

// AudioTrackNum is the number of an audio track.
// It can only be obtained from Segment.AddAudioTrack.
type AudioTrackNum struct {
	n TrackNum
}

// TrackNum returns the underlying track number.
func (t AudioTrackNum) TrackNum() TrackNum {
	return t.n
}

func requestedTrackNum(n *TrackNum) int32 {
	if n == nil {
		return 0
	}
	return int32(n.v)
}
