package codecs

// VP9 chroma subsampling values, as in the VP9 codec configuration record.
const (
	VP9ChromaSubsampling420Vertical  = 0
	VP9ChromaSubsampling420Colocated = 1
	VP9ChromaSubsampling422          = 2
	VP9ChromaSubsampling444          = 3
)

// VP9 is a VP9 codec.
type VP9 struct {
	Width             int
	Height            int
	Profile           uint8
	BitDepth          uint8 // when zero, colour metadata is not written
	ChromaSubsampling uint8
	ColorRange        bool
}

// IsVideo returns whether the codec is a video one.
func (*VP9) IsVideo() bool {
	return true
}

func (*VP9) isCodec() {
}

// SubsamplingFlags returns whether chroma is subsampled horizontally and vertically.
func (c *VP9) SubsamplingFlags() (bool, bool) {
	switch c.ChromaSubsampling {
	case VP9ChromaSubsampling420Vertical, VP9ChromaSubsampling420Colocated:
		return true, true

	case VP9ChromaSubsampling422:
		return true, false
	}

	return false, false
}
