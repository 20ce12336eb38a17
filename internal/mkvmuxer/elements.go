package mkvmuxer

import (
	"bytes"
	"encoding/binary"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

// IDs referenced by SeekHead entries.
var (
	idInfo    = []byte{0x15, 0x49, 0xa9, 0x66}
	idTracks  = []byte{0x16, 0x54, 0xae, 0x6b}
	idCues    = []byte{0x1c, 0x53, 0xbb, 0x6b}
	idCluster = []byte{0x1f, 0x43, 0xb6, 0x75}
)

const (
	timecodeScale = 1000000

	muxingApp = "gowebm"

	// space reserved after the segment header for the seek head.
	seekHeadReservedSize = 256

	// size fields that are rewritten always use 8 bytes.
	sizeFieldLen = 8

	trackTypeVideo = 1
	trackTypeAudio = 2

	colourRangeBroadcast = 1
	colourRangeFull      = 2
)

// infoElement is webm.Info with a Duration that is written even when zero,
// so that it can be rewritten in place.
type infoElement struct {
	TimecodeScale uint64  `ebml:"TimecodeScale"`
	MuxingApp     string  `ebml:"MuxingApp"`
	WritingApp    string  `ebml:"WritingApp"`
	Duration      float64 `ebml:"Duration"`
}

type colourElement struct {
	BitsPerChannel        uint64 `ebml:"BitsPerChannel"`
	ChromaSubsamplingHorz uint64 `ebml:"ChromaSubsamplingHorz"`
	ChromaSubsamplingVert uint64 `ebml:"ChromaSubsamplingVert"`
	Range                 uint64 `ebml:"Range"`
}

// videoElement is webm.Video plus Colour.
type videoElement struct {
	PixelWidth  uint64         `ebml:"PixelWidth"`
	PixelHeight uint64         `ebml:"PixelHeight"`
	Colour      *colourElement `ebml:"Colour,omitempty"`
}

type trackEntryElement struct {
	TrackNumber  uint64        `ebml:"TrackNumber"`
	TrackUID     uint64        `ebml:"TrackUID"`
	TrackType    uint64        `ebml:"TrackType"`
	CodecID      string        `ebml:"CodecID"`
	CodecPrivate []byte        `ebml:"CodecPrivate,omitempty"`
	Video        *videoElement `ebml:"Video,omitempty"`
	Audio        *webm.Audio   `ebml:"Audio,omitempty"`
}

type tracksElement struct {
	TrackEntry []trackEntryElement `ebml:"TrackEntry"`
}

func marshal(v interface{}, opts ...ebml.MarshalOption) ([]byte, error) {
	var buf bytes.Buffer
	err := ebml.Marshal(v, &buf, opts...)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalHeader() ([]byte, error) {
	return marshal(&struct {
		Header webm.EBMLHeader `ebml:"EBML"`
	}{
		Header: *webm.DefaultEBMLHeader,
	})
}

// marshalSegmentStart encodes the Segment ID followed by an unknown size,
// which is rewritten on finalization.
func marshalSegmentStart() ([]byte, error) {
	return marshal(&struct {
		Segment struct{} `ebml:"Segment,size=unknown"`
	}{})
}

// marshalVoid encodes a Void element occupying exactly size bytes.
func marshalVoid(size int) ([]byte, error) {
	return marshal(&struct {
		Void []byte `ebml:"Void"`
	}{
		Void: make([]byte, size-1-sizeFieldLen),
	}, ebml.WithDataSizeLen(sizeFieldLen))
}

// marshalInfo encodes Info. When withDuration is true, it also returns the
// offset of the Duration element inside the encoded buffer.
func marshalInfo(writingApp string, withDuration bool) ([]byte, uint64, error) {
	if !withDuration {
		buf, err := marshal(&struct {
			Info webm.Info `ebml:"Info"`
		}{
			Info: webm.Info{
				TimecodeScale: timecodeScale,
				MuxingApp:     muxingApp,
				WritingApp:    writingApp,
			},
		})
		return buf, 0, err
	}

	var durationPos uint64
	var infoSize uint64
	buf, err := marshal(&struct {
		Info infoElement `ebml:"Info"`
	}{
		Info: infoElement{
			TimecodeScale: timecodeScale,
			MuxingApp:     muxingApp,
			WritingApp:    writingApp,
		},
	}, ebml.WithElementWriteHooks(func(e *ebml.Element) {
		switch e.Name {
		case "Duration":
			durationPos = e.Position
		case "Info":
			infoSize = e.Size
		}
	}))
	if err != nil {
		return nil, 0, err
	}

	// positions of children of a sized element do not include the size
	// field of the parent.
	sizeLen := uint64(len(buf)) - uint64(len(idInfo)) - infoSize

	return buf, durationPos + sizeLen, nil
}

// marshalDuration encodes a Duration element with the same length as the
// placeholder written by marshalInfo.
func marshalDuration(ms float64) ([]byte, error) {
	return marshal(&struct {
		Duration float64 `ebml:"Duration"`
	}{
		Duration: ms,
	})
}

// encodeSize encodes an 8-byte EBML element size.
func encodeSize(v uint64) []byte {
	buf := make([]byte, sizeFieldLen)
	binary.BigEndian.PutUint64(buf, v)
	buf[0] = 0x01
	return buf
}
