package codecs

// VP8 is a VP8 codec.
type VP8 struct {
	Width  int
	Height int
}

// IsVideo returns whether the codec is a video one.
func (*VP8) IsVideo() bool {
	return true
}

func (*VP8) isCodec() {
}
