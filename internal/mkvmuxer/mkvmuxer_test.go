package mkvmuxer

import (
	"bytes"
	"io"
	"testing"
	"unsafe"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
	"github.com/orcaman/writerseeker"
	"github.com/stretchr/testify/require"
)

type testOutput struct {
	ws        writerseeker.WriterSeeker
	failWrite bool

	// when non-zero, only the write with this index (starting from 1) fails.
	failAt int
	writes int
}

func testWrite(data unsafe.Pointer, buf []byte) bool {
	o := (*testOutput)(data)
	o.writes++
	if o.failWrite || o.writes == o.failAt {
		return false
	}
	n, err := o.ws.Write(buf)
	return err == nil && n == len(buf)
}

func testGetPos(data unsafe.Pointer) uint64 {
	o := (*testOutput)(data)
	pos, _ := o.ws.Seek(0, io.SeekCurrent)
	return uint64(pos)
}

func testSetPos(data unsafe.Pointer, pos uint64) bool {
	o := (*testOutput)(data)
	_, err := o.ws.Seek(int64(pos), io.SeekStart)
	return err == nil
}

func (o *testOutput) bytes(t *testing.T) []byte {
	buf, err := io.ReadAll(o.ws.Reader())
	require.NoError(t, err)
	return buf
}

type parsedFile struct {
	Header  webm.EBMLHeader `ebml:"EBML"`
	Segment struct {
		SeekHead webm.SeekHead  `ebml:"SeekHead"`
		Info     infoElement    `ebml:"Info"`
		Tracks   tracksElement  `ebml:"Tracks"`
		Cluster  []webm.Cluster `ebml:"Cluster"`
		Cues     webm.Cues      `ebml:"Cues"`
	} `ebml:"Segment"`
}

// segmentSizePos returns the offset of the Segment size field.
func segmentSizePos(t *testing.T) int {
	header, err := marshalHeader()
	require.NoError(t, err)

	segmentStart, err := marshalSegmentStart()
	require.NoError(t, err)
	require.Equal(t, []byte{0x18, 0x53, 0x80, 0x67}, segmentStart[:4])

	return len(header) + len(segmentStart) - sizeFieldLen
}

func newTestSegment(t *testing.T, seekable bool) (*testOutput, WriterPtr, SegmentPtr) {
	o := &testOutput{}

	var setPos SetPosFunc
	if seekable {
		setPos = testSetPos
	}

	w := NewWriter(testWrite, testGetPos, setPos, unsafe.Pointer(o))
	require.NotEqual(t, WriterPtr(0), w)

	s := NewSegment()
	require.NotEqual(t, SegmentPtr(0), s)
	require.Equal(t, ResultOK, InitializeSegment(s, w))

	t.Cleanup(func() {
		DeleteSegment(s)
		DeleteWriter(w)
	})

	return o, w, s
}

func TestNewWriterMissingCallbacks(t *testing.T) {
	require.Equal(t, WriterPtr(0), NewWriter(nil, testGetPos, nil, nil))
	require.Equal(t, WriterPtr(0), NewWriter(testWrite, nil, nil, nil))
}

func TestHandles(t *testing.T) {
	before := LiveHandles()

	o := &testOutput{}
	w := NewWriter(testWrite, testGetPos, nil, unsafe.Pointer(o))
	s := NewSegment()
	require.Equal(t, before+2, LiveHandles())

	DeleteSegment(s)
	DeleteWriter(w)
	require.Equal(t, before, LiveHandles())

	require.Panics(t, func() { DeleteSegment(s) })
	require.Panics(t, func() { DeleteWriter(w) })

	require.Equal(t, ResultInvalidHandle, SegmentAddFrame(s, 1, []byte{1}, 0, true))
}

func TestInitializeTwice(t *testing.T) {
	_, w, s := newTestSegment(t, true)
	require.Equal(t, ResultInvalidState, InitializeSegment(s, w))
}

func TestTrackNumbers(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	n, res := SegmentAddVideoTrack(s, 420, 420, 123, VP8CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, uint64(123), n)

	_, res = SegmentAddVideoTrack(s, 420, 420, 123, VP8CodecID)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddAudioTrack(s, 48000, 2, 123, OpusCodecID)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddVideoTrack(s, 420, 420, 127, VP8CodecID)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddVideoTrack(s, 420, 420, -1, VP8CodecID)
	require.Equal(t, ResultInvalidArgument, res)

	n, res = SegmentAddAudioTrack(s, 48000, 2, 0, OpusCodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, uint64(1), n)

	n, res = SegmentAddVideoTrack(s, 640, 480, 0, AV1CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, uint64(2), n)
}

func TestTrackNumbersExhausted(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	for i := 1; i <= MaxTrackNumber; i++ {
		_, res := SegmentAddAudioTrack(s, 48000, 1, 0, OpusCodecID)
		require.Equal(t, ResultOK, res)
	}

	_, res := SegmentAddAudioTrack(s, 48000, 1, 0, OpusCodecID)
	require.Equal(t, ResultInvalidState, res)
}

func TestInvalidTrackParameters(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	_, res := SegmentAddVideoTrack(s, 0, 480, 0, VP8CodecID)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddVideoTrack(s, 640, 480, 0, 99)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddAudioTrack(s, 48000, 0, 0, OpusCodecID)
	require.Equal(t, ResultInvalidArgument, res)

	_, res = SegmentAddAudioTrack(s, 48000, 2, 0, 99)
	require.Equal(t, ResultInvalidArgument, res)

	n, res := SegmentAddAudioTrack(s, 48000, 2, 0, OpusCodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultInvalidArgument, SetColor(s, n, 8, 1, 1, 0))
	require.Equal(t, ResultInvalidArgument, SegmentSetCodecPrivate(s, 55, []byte{1}))
	require.Equal(t, ResultInvalidArgument, SegmentSetMaxClusterDuration(s, 0))
}

func TestConfigureAfterFirstFrame(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	SetWritingApp(s, "first-app")

	n, res := SegmentAddVideoTrack(s, 640, 480, 0, VP9CodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultOK, SegmentAddFrame(s, n, []byte{1, 2, 3}, 0, true))

	_, res = SegmentAddVideoTrack(s, 640, 480, 0, VP9CodecID)
	require.Equal(t, ResultInvalidState, res)

	_, res = SegmentAddAudioTrack(s, 48000, 2, 0, OpusCodecID)
	require.Equal(t, ResultInvalidState, res)

	require.Equal(t, ResultInvalidState, SegmentSetCodecPrivate(s, n, []byte{1}))
	require.Equal(t, ResultInvalidState, SetColor(s, n, 8, 1, 1, 0))

	SetWritingApp(s, "second-app")

	require.Equal(t, ResultOK, FinalizeSegment(s, 0))

	var f parsedFile
	err := ebml.Unmarshal(bytes.NewReader(o.bytes(t)), &f)
	require.NoError(t, err)
	require.Equal(t, "first-app", f.Segment.Info.WritingApp)
}

func TestAddFrameUnknownTrack(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	_, res := SegmentAddVideoTrack(s, 640, 480, 1, VP8CodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultInvalidArgument, SegmentAddFrame(s, 2, []byte{1}, 0, true))
	require.Equal(t, ResultOK, SegmentAddFrame(s, 1, []byte{1}, 0, true))
}

func TestAddFrameBeforeClusterStart(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	n, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultOK, SegmentAddFrame(s, n, []byte{1}, 2000000000, true))
	require.Equal(t, ResultInvalidArgument, SegmentAddFrame(s, n, []byte{1}, 1000000000, false))
}

func TestFinalizeWithoutFrames(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	_, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultInvalidState, FinalizeSegment(s, 0))
	require.Empty(t, o.bytes(t))
}

func TestFinalizeTwice(t *testing.T) {
	_, _, s := newTestSegment(t, true)

	n, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SegmentAddFrame(s, n, []byte{1}, 0, true))

	require.Equal(t, ResultOK, FinalizeSegment(s, 0))
	require.Equal(t, ResultInvalidState, FinalizeSegment(s, 0))
	require.Equal(t, ResultInvalidState, SegmentAddFrame(s, n, []byte{1}, 1, true))
}

func TestFinalizeSeekable(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	SetWritingApp(s, "test-app")

	v, res := SegmentAddVideoTrack(s, 640, 480, 1, VP9CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SetColor(s, v, 10, 1, 1, 1))

	a, res := SegmentAddAudioTrack(s, 48000, 2, 2, OpusCodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SegmentSetCodecPrivate(s, a, []byte{0x4f, 0x70, 0x75, 0x73}))

	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{1, 2}, 0, true))
	require.Equal(t, ResultOK, SegmentAddFrame(s, a, []byte{3}, 10000000, true))
	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{4}, 33000000, false))
	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{5, 6}, 1000000000, true))
	require.Equal(t, ResultOK, SegmentAddFrame(s, a, []byte{7}, 1010000000, true))

	require.Equal(t, ResultOK, FinalizeSegment(s, 0))

	buf := o.bytes(t)

	var f parsedFile
	err := ebml.Unmarshal(bytes.NewReader(buf), &f)
	require.NoError(t, err)

	require.Equal(t, "webm", f.Header.DocType)

	require.Equal(t, uint64(timecodeScale), f.Segment.Info.TimecodeScale)
	require.Equal(t, "test-app", f.Segment.Info.WritingApp)
	require.Equal(t, float64(1010), f.Segment.Info.Duration)

	require.Len(t, f.Segment.Tracks.TrackEntry, 2)
	require.Equal(t, "V_VP9", f.Segment.Tracks.TrackEntry[0].CodecID)
	require.Equal(t, &videoElement{
		PixelWidth:  640,
		PixelHeight: 480,
		Colour: &colourElement{
			BitsPerChannel:        10,
			ChromaSubsamplingHorz: 1,
			ChromaSubsamplingVert: 1,
			Range:                 colourRangeFull,
		},
	}, f.Segment.Tracks.TrackEntry[0].Video)
	require.Equal(t, "A_OPUS", f.Segment.Tracks.TrackEntry[1].CodecID)
	require.Equal(t, []byte{0x4f, 0x70, 0x75, 0x73}, f.Segment.Tracks.TrackEntry[1].CodecPrivate)
	require.Equal(t, float64(48000), f.Segment.Tracks.TrackEntry[1].Audio.SamplingFrequency)

	require.Len(t, f.Segment.Cluster, 2)
	require.Equal(t, uint64(0), f.Segment.Cluster[0].Timecode)
	require.Len(t, f.Segment.Cluster[0].SimpleBlock, 3)
	require.Equal(t, int16(33), f.Segment.Cluster[0].SimpleBlock[2].Timecode)
	require.Equal(t, [][]byte{{4}}, f.Segment.Cluster[0].SimpleBlock[2].Data)
	require.Equal(t, uint64(1000), f.Segment.Cluster[1].Timecode)
	require.Len(t, f.Segment.Cluster[1].SimpleBlock, 2)

	require.Len(t, f.Segment.Cues.CuePoint, 2)
	require.Equal(t, uint64(1000), f.Segment.Cues.CuePoint[1].CueTime)
	require.Equal(t, v, f.Segment.Cues.CuePoint[1].CueTrackPositions[0].CueTrack)

	require.Len(t, f.Segment.SeekHead.Seek, 4)

	// the segment size covers everything after the size field.
	sizePos := segmentSizePos(t)
	require.Equal(t,
		encodeSize(uint64(len(buf)-sizePos-sizeFieldLen)),
		buf[sizePos:sizePos+sizeFieldLen])
}

func TestFinalizeExplicitDuration(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	a, res := SegmentAddAudioTrack(s, 48000, 2, 0, VorbisCodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SegmentAddFrame(s, a, []byte{1}, 0, true))

	require.Equal(t, ResultOK, FinalizeSegment(s, 2500000000))

	var f parsedFile
	err := ebml.Unmarshal(bytes.NewReader(o.bytes(t)), &f)
	require.NoError(t, err)
	require.Equal(t, float64(2500), f.Segment.Info.Duration)
	require.Equal(t, "A_VORBIS", f.Segment.Tracks.TrackEntry[0].CodecID)
}

func TestAudioOnlyClusters(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	require.Equal(t, ResultOK, SegmentSetMaxClusterDuration(s, 1000000000))

	a, res := SegmentAddAudioTrack(s, 48000, 2, 0, OpusCodecID)
	require.Equal(t, ResultOK, res)

	for i := uint64(0); i < 25; i++ {
		require.Equal(t, ResultOK, SegmentAddFrame(s, a, []byte{byte(i)}, i*100000000, true))
	}

	require.Equal(t, ResultOK, FinalizeSegment(s, 0))

	var f parsedFile
	err := ebml.Unmarshal(bytes.NewReader(o.bytes(t)), &f)
	require.NoError(t, err)
	require.Len(t, f.Segment.Cluster, 3)
	require.Equal(t, uint64(2000), f.Segment.Cluster[2].Timecode)
	require.Len(t, f.Segment.Cues.CuePoint, 3)
}

func TestBlockTimecodeOverflow(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	v, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)

	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{1}, 0, true))
	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{2}, 40000000000, false))

	require.Equal(t, ResultOK, FinalizeSegment(s, 0))

	var f parsedFile
	err := ebml.Unmarshal(bytes.NewReader(o.bytes(t)), &f)
	require.NoError(t, err)
	require.Len(t, f.Segment.Cluster, 2)
	require.Equal(t, uint64(40000), f.Segment.Cluster[1].Timecode)
	require.Len(t, f.Segment.Cues.CuePoint, 1)
}

func TestFinalizeNonSeekable(t *testing.T) {
	o, _, s := newTestSegment(t, false)

	v, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{1}, 0, true))
	require.Equal(t, ResultOK, FinalizeSegment(s, 5000000000))

	buf := o.bytes(t)

	header, err := marshalHeader()
	require.NoError(t, err)
	require.Equal(t, header, buf[:len(header)])

	sizePos := segmentSizePos(t)
	require.Equal(t,
		[]byte{0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		buf[sizePos:sizePos+sizeFieldLen])

	// no seek head reservation.
	require.Equal(t, idInfo, buf[sizePos+sizeFieldLen:sizePos+sizeFieldLen+len(idInfo)])
	require.False(t, bytes.Contains(buf, idCues))
}

func TestWriteFailure(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	v, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)

	o.failWrite = true
	require.Equal(t, ResultWriteFailed, SegmentAddFrame(s, v, []byte{1}, 0, true))
}

func TestDeleteWithoutFinalize(t *testing.T) {
	o := &testOutput{}
	w := NewWriter(testWrite, testGetPos, testSetPos, unsafe.Pointer(o))
	s := NewSegment()
	require.Equal(t, ResultOK, InitializeSegment(s, w))

	v, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)
	require.Equal(t, ResultOK, SegmentAddFrame(s, v, []byte{1}, 0, true))

	written := len(o.bytes(t))

	DeleteSegment(s)
	DeleteWriter(w)

	require.Equal(t, written, len(o.bytes(t)))
}

func TestWriteFailureDuringHeader(t *testing.T) {
	o, _, s := newTestSegment(t, true)

	v, res := SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultOK, res)

	// the EBML header is written, the Segment start is not.
	o.failAt = 2
	require.Equal(t, ResultWriteFailed, SegmentAddFrame(s, v, []byte{1}, 0, true))

	// the segment is not usable anymore.
	require.Equal(t, ResultInvalidState, SegmentAddFrame(s, v, []byte{1}, 0, true))
	require.Equal(t, ResultInvalidState, FinalizeSegment(s, 0))
	_, res = SegmentAddVideoTrack(s, 640, 480, 0, VP8CodecID)
	require.Equal(t, ResultInvalidState, res)

	header, err := marshalHeader()
	require.NoError(t, err)
	require.Equal(t, header, o.bytes(t))
}

func TestMarshalInfo(t *testing.T) {
	for _, ca := range []string{
		"short",
		"long",
	} {
		t.Run(ca, func(t *testing.T) {
			app := "app"
			if ca == "long" {
				app = string(bytes.Repeat([]byte{'a'}, 200))
			}

			buf, off, err := marshalInfo(app, true)
			require.NoError(t, err)

			placeholder, err := marshalDuration(0)
			require.NoError(t, err)

			// Duration is the last child
			require.Equal(t, len(buf), int(off)+len(placeholder))
			require.Equal(t, placeholder, buf[off:])

			dur, err := marshalDuration(1234)
			require.NoError(t, err)
			require.Len(t, dur, len(placeholder))

			patched := append(append([]byte(nil), buf[:off]...), dur...)

			var f struct {
				Info infoElement `ebml:"Info"`
			}
			err = ebml.Unmarshal(bytes.NewReader(patched), &f)
			require.NoError(t, err)
			require.Equal(t, float64(1234), f.Info.Duration)
			require.Equal(t, app, f.Info.WritingApp)
		})
	}

	buf, _, err := marshalInfo("app", false)
	require.NoError(t, err)

	var f struct {
		Info webm.Info `ebml:"Info"`
	}
	err = ebml.Unmarshal(bytes.NewReader(buf), &f)
	require.NoError(t, err)
	require.Equal(t, float64(0), f.Info.Duration)
	require.Equal(t, muxingApp, f.Info.MuxingApp)
}

func TestMarshalVoid(t *testing.T) {
	buf, err := marshalVoid(seekHeadReservedSize)
	require.NoError(t, err)
	require.Len(t, buf, seekHeadReservedSize)
	require.Equal(t, byte(0xec), buf[0])
	require.Equal(t, encodeSize(seekHeadReservedSize-1-sizeFieldLen), buf[1:1+sizeFieldLen])
}
