package codecs

import (
	"fmt"
)

// Vorbis is a Vorbis codec.
type Vorbis struct {
	SampleRate   int
	ChannelCount int

	// identification, comment and setup headers.
	IdentificationHeader []byte
	CommentHeader        []byte
	SetupHeader          []byte
}

// IsVideo returns whether the codec is a video one.
func (*Vorbis) IsVideo() bool {
	return false
}

func (*Vorbis) isCodec() {
}

func xiphLacingSize(v int) []byte {
	var buf []byte
	for v >= 255 {
		buf = append(buf, 255)
		v -= 255
	}
	return append(buf, byte(v))
}

// MarshalHeaders encodes the three Vorbis headers with Xiph lacing,
// which is the CodecPrivate of Vorbis tracks.
func (c *Vorbis) MarshalHeaders() ([]byte, error) {
	if len(c.IdentificationHeader) == 0 || len(c.CommentHeader) == 0 || len(c.SetupHeader) == 0 {
		return nil, fmt.Errorf("vorbis headers are missing")
	}

	buf := []byte{2}
	buf = append(buf, xiphLacingSize(len(c.IdentificationHeader))...)
	buf = append(buf, xiphLacingSize(len(c.CommentHeader))...)
	buf = append(buf, c.IdentificationHeader...)
	buf = append(buf, c.CommentHeader...)
	buf = append(buf, c.SetupHeader...)

	return buf, nil
}
