package gowebm

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
)

const (
	defaultMaxClusterDuration = 5 * time.Second
)

// ownedSegmentPtr releases a native segment exactly once.
// It keeps the writer reachable, so that the segment is always
// released before its writer.
type ownedSegmentPtr struct {
	p mkvmuxer.SegmentPtr
	w *ownedWriterPtr
}

func newOwnedSegmentPtr(p mkvmuxer.SegmentPtr, w *ownedWriterPtr) *ownedSegmentPtr {
	o := &ownedSegmentPtr{p: p, w: w}
	runtime.SetFinalizer(o, (*ownedSegmentPtr).release)
	return o
}

func (o *ownedSegmentPtr) release() {
	if o.p == 0 {
		return
	}
	mkvmuxer.DeleteSegment(o.p)
	o.p = 0
	o.w = nil
	runtime.SetFinalizer(o, nil)
}

// Subsampling contains chroma subsampling flags.
type Subsampling struct {
	Horizontal bool
	Vertical   bool
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Segment is a WebM segment. This is where tracks are created and frames are written.
//
// Once all frames have been written, Finalize must be called.
// It performs a few final writes, and the output may not be playable without them.
// A segment that is no longer needed must be released with Finalize or Close.
//
// A Segment must not be used by multiple goroutines at once.
type Segment[T io.Writer] struct {
	//
	// parameters (all optional except Writer).
	//
	// Writer the segment writes to.
	Writer *Writer[T]
	// Maximum duration of clusters when the segment has no video tracks.
	// When there are video tracks, a cluster is started on each video key frame.
	// It defaults to 5sec.
	MaxClusterDuration time.Duration

	//
	// callbacks (all optional)
	//
	// called when there's a log.
	OnLog LogFunc

	//
	// private
	//

	mkv         *ownedSegmentPtr
	frameCount  uint64
	trackCodecs []trackCodec
}

// NewSegment allocates a Segment that writes to w.
func NewSegment[T io.Writer](w *Writer[T]) (*Segment[T], error) {
	s := &Segment[T]{
		Writer: w,
	}
	err := s.Start()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start initializes the Segment.
func (s *Segment[T]) Start() error {
	if s.Writer == nil {
		return newConstructionError("start", errors.New("writer is missing"))
	}
	if s.MaxClusterDuration == 0 {
		s.MaxClusterDuration = defaultMaxClusterDuration
	}
	if s.MaxClusterDuration < 0 {
		return newConstructionError("start", errors.New("invalid max cluster duration"))
	}
	if s.OnLog == nil {
		s.OnLog = defaultLog
	}

	p := mkvmuxer.NewSegment()
	if p == 0 {
		return newConstructionError("start", nil)
	}
	mkv := newOwnedSegmentPtr(p, s.Writer.mkv)

	res := mkvmuxer.InitializeSegment(p, s.Writer.mkvWriter())
	if res == mkvmuxer.ResultOK {
		res = mkvmuxer.SegmentSetMaxClusterDuration(p, uint64(s.MaxClusterDuration))
	}
	if res != mkvmuxer.ResultOK {
		mkv.release()
		return newConstructionError("start", nil)
	}

	s.mkv = mkv
	return nil
}

func (s *Segment[T]) segmentPtr() mkvmuxer.SegmentPtr {
	if s.mkv == nil {
		return 0
	}
	return s.mkv.p
}

func (s *Segment[T]) checkAssigned(raw uint64, requested *TrackNum) TrackNum {
	n, err := NewTrackNum(raw)
	if err != nil {
		panic(fmt.Sprintf("engine assigned an invalid track number: %v", err))
	}

	// if a specific track number was requested, make sure we got it
	if requested != nil && *requested != n {
		panic(fmt.Sprintf("requested track number %v, engine assigned %v", *requested, n))
	}

	return n
}

// SetMuxingAppName sets the name of the muxing application, written in the
// WritingApp element.
// It has no effect once the first frame has been written.
func (s *Segment[T]) SetMuxingAppName(name string) {
	mkvmuxer.SetWritingApp(s.segmentPtr(), name)
}

// AddVideoTrack adds a video track and returns its number.
//
// num is the requested track number. If it is set and the call succeeds,
// the returned number is num; if a track with that number already exists,
// the call fails. Leave it nil to let a free number be chosen.
//
// It fails once the first frame has been written.
func (s *Segment[T]) AddVideoTrack(
	width uint32,
	height uint32,
	num *TrackNum,
	codec VideoCodecID,
) (VideoTrackNum, error) {
	if width > math.MaxInt32 || height > math.MaxInt32 {
		return VideoTrackNum{}, resultToError("add video track", mkvmuxer.ResultInvalidArgument, nil)
	}

	raw, res := mkvmuxer.SegmentAddVideoTrack(s.segmentPtr(),
		int32(width), int32(height), requestedTrackNum(num), codec.id())
	if res != mkvmuxer.ResultOK {
		return VideoTrackNum{}, resultToError("add video track", res, nil)
	}

	n := s.checkAssigned(raw, num)
	s.trackCodecs = append(s.trackCodecs, trackCodec{num: n, codec: videoCodec(codec, width, height)})

	s.OnLog(LogLevelDebug, "added video track %v (%v, %dx%d)", n, codec, width, height)

	return VideoTrackNum{n: n}, nil
}

// AddAudioTrack adds an audio track and returns its number.
//
// num is the requested track number. If it is set and the call succeeds,
// the returned number is num; if a track with that number already exists,
// the call fails. Leave it nil to let a free number be chosen.
//
// It fails once the first frame has been written.
func (s *Segment[T]) AddAudioTrack(
	sampleRate uint32,
	channels uint32,
	num *TrackNum,
	codec AudioCodecID,
) (AudioTrackNum, error) {
	if sampleRate > math.MaxInt32 || channels > math.MaxInt32 {
		return AudioTrackNum{}, resultToError("add audio track", mkvmuxer.ResultInvalidArgument, nil)
	}

	raw, res := mkvmuxer.SegmentAddAudioTrack(s.segmentPtr(),
		int32(sampleRate), int32(channels), requestedTrackNum(num), codec.id())
	if res != mkvmuxer.ResultOK {
		return AudioTrackNum{}, resultToError("add audio track", res, nil)
	}

	n := s.checkAssigned(raw, num)
	s.trackCodecs = append(s.trackCodecs, trackCodec{num: n, codec: audioCodec(codec, sampleRate, channels)})

	s.OnLog(LogLevelDebug, "added audio track %v (%v, %d Hz, %d channels)", n, codec, sampleRate, channels)

	return AudioTrackNum{n: n}, nil
}

// SetCodecPrivate sets the CodecPrivate data of a track.
//
// It fails once the first frame has been written.
func (s *Segment[T]) SetCodecPrivate(num TrackNum, data []byte) error {
	res := mkvmuxer.SegmentSetCodecPrivate(s.segmentPtr(), num.v, data)
	return resultToError("set codec private", res, nil)
}

// SetColor sets the colour metadata of a video track.
//
// It fails once the first frame has been written.
func (s *Segment[T]) SetColor(
	track VideoTrackNum,
	bitDepth uint8,
	subsampling Subsampling,
	fullRange bool,
) error {
	res := mkvmuxer.SetColor(s.segmentPtr(),
		track.n.v,
		int32(bitDepth),
		boolToInt(subsampling.Horizontal),
		boolToInt(subsampling.Vertical),
		boolToInt(fullRange))
	return resultToError("set color", res, nil)
}

// AddFrame writes a frame of the track with the given number.
//
// timestampNS is in nanoseconds, and must not decrease with respect to
// all timestamps written so far, including those of other tracks.
// Repeating the last timestamp is allowed, but players do not handle it
// well when both frames belong to the same track.
//
// After a failed write to the destination, the segment rejects any further
// frame and cannot be finalized.
func (s *Segment[T]) AddFrame(num TrackNum, data []byte, timestampNS uint64, keyframe bool) error {
	s.Writer.resetErr()

	res := mkvmuxer.SegmentAddFrame(s.segmentPtr(), num.v, data, timestampNS, keyframe)
	if res != mkvmuxer.ResultOK {
		return resultToError("add frame", res, s.Writer.takeErr())
	}

	s.frameCount++
	return nil
}

// Finalize finalizes the segment, releases it and returns the destination.
// The destination is returned even when finalization fails.
//
// Finalization writes seeking information and the duration, which requires a
// seekable destination; with a non-seekable one they are omitted.
// duration is written into the Duration element; when zero, the timestamp
// of the last frame is used instead.
//
// Finalization fails when no frames have been written.
func (s *Segment[T]) Finalize(duration time.Duration) (T, error) {
	if s.mkv == nil {
		var zero T
		return zero, resultToError("finalize", mkvmuxer.ResultInvalidHandle, nil)
	}

	if duration < 0 {
		duration = 0
	}

	s.Writer.resetErr()

	res := mkvmuxer.FinalizeSegment(s.mkv.p, uint64(duration))
	cause := s.Writer.takeErr()

	s.mkv.release()
	s.mkv = nil
	dest := s.Writer.IntoInner()

	if res != mkvmuxer.ResultOK {
		s.OnLog(LogLevelWarn, "unable to finalize segment after %d frames", s.frameCount)
		return dest, resultToError("finalize", res, cause)
	}

	if !s.Writer.Seekable() {
		s.OnLog(LogLevelInfo, "destination is not seekable, duration and seeking information have been omitted")
	}

	return dest, nil
}

// Close releases the segment without finalizing it.
// It performs no writes, therefore the output may not be playable.
func (s *Segment[T]) Close() {
	if s.mkv == nil {
		return
	}

	if s.frameCount != 0 {
		s.OnLog(LogLevelWarn, "segment closed without being finalized, output may not be playable")
	}

	s.mkv.release()
	s.mkv = nil
	s.Writer.Close()
}
