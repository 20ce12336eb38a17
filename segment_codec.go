package gowebm

import (
	"github.com/pkg/errors"

	"github.com/bluenviron/gowebm/internal/mkvmuxer"
	"github.com/bluenviron/gowebm/pkg/codecparams"
	"github.com/bluenviron/gowebm/pkg/codecs"
)

type trackCodec struct {
	num   TrackNum
	codec codecs.Codec
}

func videoCodec(id VideoCodecID, width uint32, height uint32) codecs.Codec {
	switch id {
	case VideoCodecVP8:
		return &codecs.VP8{Width: int(width), Height: int(height)}

	case VideoCodecVP9:
		return &codecs.VP9{Width: int(width), Height: int(height)}
	}

	return &codecs.AV1{Width: int(width), Height: int(height)}
}

func audioCodec(id AudioCodecID, sampleRate uint32, channels uint32) codecs.Codec {
	if id == AudioCodecVorbis {
		return &codecs.Vorbis{SampleRate: int(sampleRate), ChannelCount: int(channels)}
	}
	return &codecs.Opus{ChannelCount: int(channels)}
}

func sizeToUint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// AddTrack adds a track described by a codec, then sets its CodecPrivate
// and colour metadata when the codec provides them.
// num has the same meaning as in AddVideoTrack and AddAudioTrack.
//
// It fails once the first frame has been written.
func (s *Segment[T]) AddTrack(codec codecs.Codec, num *TrackNum) (TrackNum, error) {
	switch c := codec.(type) {
	case *codecs.VP8:
		v, err := s.AddVideoTrack(sizeToUint32(c.Width), sizeToUint32(c.Height), num, VideoCodecVP8)
		if err != nil {
			return TrackNum{}, err
		}

		s.setTrackCodec(v.TrackNum(), c)
		return v.TrackNum(), nil

	case *codecs.VP9:
		v, err := s.AddVideoTrack(sizeToUint32(c.Width), sizeToUint32(c.Height), num, VideoCodecVP9)
		if err != nil {
			return TrackNum{}, err
		}

		if c.BitDepth != 0 {
			horizontal, vertical := c.SubsamplingFlags()
			err = s.SetColor(v, c.BitDepth, Subsampling{
				Horizontal: horizontal,
				Vertical:   vertical,
			}, c.ColorRange)
			if err != nil {
				return TrackNum{}, err
			}
		}

		s.setTrackCodec(v.TrackNum(), c)
		return v.TrackNum(), nil

	case *codecs.AV1:
		v, err := s.AddVideoTrack(sizeToUint32(c.Width), sizeToUint32(c.Height), num, VideoCodecAV1)
		if err != nil {
			return TrackNum{}, err
		}

		if len(c.ConfigurationRecord) != 0 {
			err = s.SetCodecPrivate(v.TrackNum(), c.ConfigurationRecord)
			if err != nil {
				return TrackNum{}, err
			}
		}

		s.setTrackCodec(v.TrackNum(), c)
		return v.TrackNum(), nil

	case *codecs.Opus:
		head, err := c.MarshalHead()
		if err != nil {
			return TrackNum{}, &Error{Kind: ErrorKindOperation, Op: "add track", Err: err}
		}

		a, err := s.AddAudioTrack(uint32(c.SampleRate()), sizeToUint32(c.ChannelCount), num, AudioCodecOpus)
		if err != nil {
			return TrackNum{}, err
		}

		err = s.SetCodecPrivate(a.TrackNum(), head)
		if err != nil {
			return TrackNum{}, err
		}

		s.setTrackCodec(a.TrackNum(), c)
		return a.TrackNum(), nil

	case *codecs.Vorbis:
		headers, err := c.MarshalHeaders()
		if err != nil {
			return TrackNum{}, &Error{Kind: ErrorKindOperation, Op: "add track", Err: err}
		}

		a, err := s.AddAudioTrack(sizeToUint32(c.SampleRate), sizeToUint32(c.ChannelCount), num, AudioCodecVorbis)
		if err != nil {
			return TrackNum{}, err
		}

		err = s.SetCodecPrivate(a.TrackNum(), headers)
		if err != nil {
			return TrackNum{}, err
		}

		s.setTrackCodec(a.TrackNum(), c)
		return a.TrackNum(), nil
	}

	return TrackNum{}, resultToError("add track", mkvmuxer.ResultInvalidArgument,
		errors.Errorf("unsupported codec: %T", codec))
}

func (s *Segment[T]) setTrackCodec(num TrackNum, c codecs.Codec) {
	for i := range s.trackCodecs {
		if s.trackCodecs[i].num == num {
			s.trackCodecs[i].codec = c
			return
		}
	}
}

// MIMEType returns the MIME type of the output, including the codecs
// parameter of every track added so far.
// Tracks added with AddTrack provide the most accurate parameters.
func (s *Segment[T]) MIMEType() string {
	cs := make([]codecs.Codec, len(s.trackCodecs))
	for i, tc := range s.trackCodecs {
		cs[i] = tc.codec
	}
	return codecparams.MIMEType(cs)
}
