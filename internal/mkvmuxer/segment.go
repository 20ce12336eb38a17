package mkvmuxer

import (
	"math"
	"math/rand"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/at-wat/ebml-go/webm"
)

const defaultMaxClusterDuration = uint64(5 * time.Second)

type colour struct {
	bitDepth     uint64
	samplingHorz uint64
	samplingVert uint64
	fullRange    bool
}

type track struct {
	number       uint64
	uid          uint64
	video        bool
	codecID      uint32
	width        uint64
	height       uint64
	sampleRate   float64
	channels     uint64
	codecPrivate []byte
	colour       *colour
}

func (t *track) codecString() string {
	if t.video {
		switch t.codecID {
		case VP8CodecID:
			return "V_VP8"
		case VP9CodecID:
			return "V_VP9"
		default:
			return "V_AV1"
		}
	}

	if t.codecID == OpusCodecID {
		return "A_OPUS"
	}
	return "A_VORBIS"
}

func (t *track) marshalEntry() trackEntryElement {
	e := trackEntryElement{
		TrackNumber:  t.number,
		TrackUID:     t.uid,
		CodecID:      t.codecString(),
		CodecPrivate: t.codecPrivate,
	}

	if t.video {
		e.TrackType = trackTypeVideo
		e.Video = &videoElement{
			PixelWidth:  t.width,
			PixelHeight: t.height,
		}

		if t.colour != nil {
			rng := uint64(colourRangeBroadcast)
			if t.colour.fullRange {
				rng = colourRangeFull
			}

			e.Video.Colour = &colourElement{
				BitsPerChannel:        t.colour.bitDepth,
				ChromaSubsamplingHorz: t.colour.samplingHorz,
				ChromaSubsamplingVert: t.colour.samplingVert,
				Range:                 rng,
			}
		}
	} else {
		e.TrackType = trackTypeAudio
		e.Audio = &webm.Audio{
			SamplingFrequency: t.sampleRate,
			Channels:          t.channels,
		}
	}

	return e
}

type cluster struct {
	timecode uint64 // in TimecodeScale units
	startNS  uint64
	blocks   []ebml.Block

	hasCue   bool
	cueTime  uint64
	cueTrack uint64
}

type segment struct {
	w                  *writer
	finalized          bool
	failed             bool // a write failed, the output is unusable
	maxClusterDuration uint64
	writingApp         string
	tracks             []*track

	headerWritten bool
	frameCount    uint64
	lastTimestamp uint64

	segmentSizePos uint64
	segmentDataPos uint64
	seekHeadPos    uint64
	infoPos        uint64
	tracksPos      uint64
	durationPos    uint64
	hasDuration    bool

	cur             *cluster
	firstClusterPos uint64
	hasCluster      bool
	cuePoints       []webm.CuePoint
}

func newSegment() *segment {
	return &segment{
		maxClusterDuration: defaultMaxClusterDuration,
	}
}

func (s *segment) initialize(w *writer) Result {
	if s.w != nil {
		return ResultInvalidState
	}
	s.w = w
	return ResultOK
}

func (s *segment) canConfigure() bool {
	return s.w != nil && !s.headerWritten && !s.finalized && !s.failed
}

func (s *segment) findTrack(number uint64) *track {
	for _, t := range s.tracks {
		if t.number == number {
			return t
		}
	}
	return nil
}

func (s *segment) hasVideo() bool {
	for _, t := range s.tracks {
		if t.video {
			return true
		}
	}
	return false
}

func (s *segment) allocateTrackNumber(requested int32) (uint64, Result) {
	if requested < 0 || requested > MaxTrackNumber {
		return 0, ResultInvalidArgument
	}

	if requested != 0 {
		if s.findTrack(uint64(requested)) != nil {
			return 0, ResultInvalidArgument
		}
		return uint64(requested), ResultOK
	}

	for n := uint64(1); n <= MaxTrackNumber; n++ {
		if s.findTrack(n) == nil {
			return n, ResultOK
		}
	}
	return 0, ResultInvalidState
}

func randomUID() uint64 {
	for {
		if v := rand.Uint64(); v != 0 {
			return v
		}
	}
}

func (s *segment) addVideoTrack(width int32, height int32, number int32, codecID uint32) (uint64, Result) {
	if !s.canConfigure() {
		return 0, ResultInvalidState
	}
	if width <= 0 || height <= 0 {
		return 0, ResultInvalidArgument
	}
	if codecID != VP8CodecID && codecID != VP9CodecID && codecID != AV1CodecID {
		return 0, ResultInvalidArgument
	}

	n, res := s.allocateTrackNumber(number)
	if res != ResultOK {
		return 0, res
	}

	s.tracks = append(s.tracks, &track{
		number:  n,
		uid:     randomUID(),
		video:   true,
		codecID: codecID,
		width:   uint64(width),
		height:  uint64(height),
	})
	return n, ResultOK
}

func (s *segment) addAudioTrack(sampleRate int32, channels int32, number int32, codecID uint32) (uint64, Result) {
	if !s.canConfigure() {
		return 0, ResultInvalidState
	}
	if sampleRate <= 0 || channels <= 0 {
		return 0, ResultInvalidArgument
	}
	if codecID != OpusCodecID && codecID != VorbisCodecID {
		return 0, ResultInvalidArgument
	}

	n, res := s.allocateTrackNumber(number)
	if res != ResultOK {
		return 0, res
	}

	s.tracks = append(s.tracks, &track{
		number:     n,
		uid:        randomUID(),
		codecID:    codecID,
		sampleRate: float64(sampleRate),
		channels:   uint64(channels),
	})
	return n, ResultOK
}

func (s *segment) setCodecPrivate(number uint64, data []byte) Result {
	if !s.canConfigure() {
		return ResultInvalidState
	}

	t := s.findTrack(number)
	if t == nil {
		return ResultInvalidArgument
	}

	t.codecPrivate = append([]byte(nil), data...)
	return ResultOK
}

func (s *segment) setColor(number uint64, bitDepth int32, samplingHorz int32, samplingVert int32, fullRange int32) Result {
	if !s.canConfigure() {
		return ResultInvalidState
	}

	t := s.findTrack(number)
	if t == nil || !t.video {
		return ResultInvalidArgument
	}
	if bitDepth <= 0 || samplingHorz < 0 || samplingVert < 0 {
		return ResultInvalidArgument
	}

	t.colour = &colour{
		bitDepth:     uint64(bitDepth),
		samplingHorz: uint64(samplingHorz),
		samplingVert: uint64(samplingVert),
		fullRange:    fullRange != 0,
	}
	return ResultOK
}

func (s *segment) setWritingApp(name string) {
	if !s.canConfigure() {
		return
	}
	s.writingApp = name
}

func (s *segment) writeHeader() Result {
	header, err := marshalHeader()
	if err != nil {
		return ResultInvalidState
	}
	if !s.w.writeBytes(header) {
		return ResultWriteFailed
	}

	segmentStart, err := marshalSegmentStart()
	if err != nil {
		return ResultInvalidState
	}
	if !s.w.writeBytes(segmentStart) {
		return ResultWriteFailed
	}
	s.segmentDataPos = s.w.position()
	s.segmentSizePos = s.segmentDataPos - sizeFieldLen

	if s.w.seekable() {
		void, err := marshalVoid(seekHeadReservedSize)
		if err != nil {
			return ResultInvalidState
		}

		s.seekHeadPos = s.segmentDataPos
		if !s.w.writeBytes(void) {
			return ResultWriteFailed
		}
	}

	writingApp := s.writingApp
	if writingApp == "" {
		writingApp = muxingApp
	}

	s.infoPos = s.w.position()
	info, durationOffset, err := marshalInfo(writingApp, s.w.seekable())
	if err != nil {
		return ResultInvalidState
	}
	if !s.w.writeBytes(info) {
		return ResultWriteFailed
	}
	if s.w.seekable() {
		s.durationPos = s.infoPos + durationOffset
		s.hasDuration = true
	}

	entries := make([]trackEntryElement, len(s.tracks))
	for i, t := range s.tracks {
		entries[i] = t.marshalEntry()
	}

	s.tracksPos = s.w.position()
	tracks, err := marshal(&struct {
		Tracks tracksElement `ebml:"Tracks"`
	}{
		Tracks: tracksElement{TrackEntry: entries},
	})
	if err != nil {
		return ResultInvalidState
	}
	if !s.w.writeBytes(tracks) {
		return ResultWriteFailed
	}

	s.headerWritten = true
	return ResultOK
}

func (s *segment) flushCluster() Result {
	c := s.cur
	if c == nil {
		return ResultOK
	}
	s.cur = nil

	pos := s.w.position()

	buf, err := marshal(&struct {
		Cluster webm.Cluster `ebml:"Cluster"`
	}{
		Cluster: webm.Cluster{
			Timecode:    c.timecode,
			SimpleBlock: c.blocks,
		},
	})
	if err != nil {
		return ResultInvalidState
	}
	if !s.w.writeBytes(buf) {
		return ResultWriteFailed
	}

	if !s.hasCluster {
		s.firstClusterPos = pos
		s.hasCluster = true
	}

	if c.hasCue {
		s.cuePoints = append(s.cuePoints, webm.CuePoint{
			CueTime: c.cueTime,
			CueTrackPositions: []webm.CueTrackPosition{{
				CueTrack:           c.cueTrack,
				CueClusterPosition: pos - s.segmentDataPos,
			}},
		})
	}

	return ResultOK
}

func (s *segment) needsNewCluster(t *track, timestampNS uint64, keyframe bool) (bool, Result) {
	c := s.cur
	if c == nil {
		return true, ResultOK
	}

	rel := int64(timestampNS/timecodeScale) - int64(c.timecode)
	switch {
	case rel < 0:
		return false, ResultInvalidArgument

	case rel > math.MaxInt16:
		return true, ResultOK

	case t.video && keyframe && len(c.blocks) > 0:
		return true, ResultOK

	case !s.hasVideo() && timestampNS >= c.startNS && timestampNS-c.startNS >= s.maxClusterDuration:
		return true, ResultOK
	}

	return false, ResultOK
}

// addFrame appends a frame. After a failed write, the output is left in an
// unknown state, therefore every following frame is rejected.
func (s *segment) addFrame(number uint64, data []byte, timestampNS uint64, keyframe bool) Result {
	if s.w == nil || s.finalized || s.failed {
		return ResultInvalidState
	}

	res := s.writeFrame(number, data, timestampNS, keyframe)
	if res == ResultWriteFailed {
		s.failed = true
	}
	return res
}

func (s *segment) writeFrame(number uint64, data []byte, timestampNS uint64, keyframe bool) Result {
	t := s.findTrack(number)
	if t == nil {
		return ResultInvalidArgument
	}

	if !s.headerWritten {
		if res := s.writeHeader(); res != ResultOK {
			return res
		}
	}

	newCluster, res := s.needsNewCluster(t, timestampNS, keyframe)
	if res != ResultOK {
		return res
	}

	if newCluster {
		if res := s.flushCluster(); res != ResultOK {
			return res
		}
		s.cur = &cluster{
			timecode: timestampNS / timecodeScale,
			startNS:  timestampNS,
		}
	}

	c := s.cur
	c.blocks = append(c.blocks, ebml.Block{
		TrackNumber: number,
		Timecode:    int16(timestampNS/timecodeScale - c.timecode),
		Keyframe:    keyframe,
		Data:        [][]byte{append([]byte(nil), data...)},
	})

	if !c.hasCue && keyframe && (t.video || !s.hasVideo()) {
		c.hasCue = true
		c.cueTime = timestampNS / timecodeScale
		c.cueTrack = number
	}

	s.frameCount++
	if timestampNS > s.lastTimestamp {
		s.lastTimestamp = timestampNS
	}

	return ResultOK
}

func (s *segment) writeSeekHead(cuesPos uint64, hasCues bool) Result {
	seeks := []webm.Seek{
		{SeekID: idInfo, SeekPosition: s.infoPos - s.segmentDataPos},
		{SeekID: idTracks, SeekPosition: s.tracksPos - s.segmentDataPos},
	}
	if hasCues {
		seeks = append(seeks, webm.Seek{SeekID: idCues, SeekPosition: cuesPos - s.segmentDataPos})
	}
	if s.hasCluster {
		seeks = append(seeks, webm.Seek{SeekID: idCluster, SeekPosition: s.firstClusterPos - s.segmentDataPos})
	}

	buf, err := marshal(&struct {
		SeekHead webm.SeekHead `ebml:"SeekHead"`
	}{
		SeekHead: webm.SeekHead{Seek: seeks},
	})
	if err != nil {
		return ResultInvalidState
	}

	// the rest of the reserved space is filled with a Void element.
	remaining := seekHeadReservedSize - len(buf)
	if remaining < 1+sizeFieldLen {
		return ResultInvalidState
	}
	void, err := marshalVoid(remaining)
	if err != nil {
		return ResultInvalidState
	}
	buf = append(buf, void...)

	if !s.w.writeAt(s.seekHeadPos, buf) {
		return ResultWriteFailed
	}
	return ResultOK
}

func (s *segment) finalize(durationNS uint64) Result {
	if s.w == nil || s.finalized || s.failed {
		return ResultInvalidState
	}
	if s.frameCount == 0 {
		return ResultInvalidState
	}

	s.finalized = true

	if res := s.flushCluster(); res != ResultOK {
		return res
	}

	if !s.w.seekable() {
		return ResultOK
	}

	cuesPos := s.w.position()
	hasCues := len(s.cuePoints) > 0
	if hasCues {
		buf, err := marshal(&struct {
			Cues webm.Cues `ebml:"Cues"`
		}{
			Cues: webm.Cues{CuePoint: s.cuePoints},
		})
		if err != nil {
			return ResultInvalidState
		}
		if !s.w.writeBytes(buf) {
			return ResultWriteFailed
		}
	}

	end := s.w.position()

	if res := s.writeSeekHead(cuesPos, hasCues); res != ResultOK {
		return res
	}

	if s.hasDuration {
		if durationNS == 0 {
			durationNS = s.lastTimestamp
		}
		buf, err := marshalDuration(float64(durationNS) / timecodeScale)
		if err != nil {
			return ResultInvalidState
		}
		if !s.w.writeAt(s.durationPos, buf) {
			return ResultWriteFailed
		}
	}

	if !s.w.writeAt(s.segmentSizePos, encodeSize(end-s.segmentDataPos)) {
		return ResultWriteFailed
	}

	if !s.w.setPosition(end) {
		return ResultWriteFailed
	}

	return ResultOK
}
