package codecs

import (
	"encoding/binary"
	"fmt"
)

const (
	opusDefaultPreSkip = 3840
	opusSampleRate     = 48000
)

// Opus is a Opus codec.
type Opus struct {
	ChannelCount int

	// samples to discard at the beginning of the stream, at 48kHz.
	// It defaults to 3840.
	PreSkip uint16

	// sample rate of the encoder input, informational.
	// It defaults to 48000.
	InputSampleRate uint32
}

// IsVideo returns whether the codec is a video one.
func (*Opus) IsVideo() bool {
	return false
}

func (*Opus) isCodec() {
}

// SampleRate returns the sample rate of Opus streams, which is always 48kHz.
func (*Opus) SampleRate() int {
	return opusSampleRate
}

// MarshalHead encodes the OpusHead identification header,
// which is the CodecPrivate of Opus tracks.
func (c *Opus) MarshalHead() ([]byte, error) {
	// channel mapping family 0 only supports mono and stereo
	if c.ChannelCount < 1 || c.ChannelCount > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", c.ChannelCount)
	}

	preSkip := c.PreSkip
	if preSkip == 0 {
		preSkip = opusDefaultPreSkip
	}

	inputSampleRate := c.InputSampleRate
	if inputSampleRate == 0 {
		inputSampleRate = opusSampleRate
	}

	buf := make([]byte, 19)
	copy(buf, "OpusHead")
	buf[8] = 1 // version
	buf[9] = uint8(c.ChannelCount)
	binary.LittleEndian.PutUint16(buf[10:], preSkip)
	binary.LittleEndian.PutUint32(buf[12:], inputSampleRate)
	// output gain and channel mapping family are zero

	return buf, nil
}
