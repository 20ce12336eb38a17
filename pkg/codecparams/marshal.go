// Package codecparams contains utilities to deal with codec parameters.
package codecparams

import (
	"fmt"
	"strings"

	"github.com/bluenviron/gowebm/pkg/codecs"
)

func encodeAV1(rec []byte) string {
	// marker, version, profile, level and tier flags
	if len(rec) < 3 || rec[0] != 0x81 {
		return ""
	}

	profile := rec[1] >> 5
	level := rec[1] & 0x1f

	tier := "M"
	if (rec[2] & 0x80) != 0 {
		tier = "H"
	}

	bitDepth := 8
	switch {
	case (rec[2]&0x40) != 0 && (rec[2]&0x20) != 0:
		bitDepth = 12
	case (rec[2] & 0x40) != 0:
		bitDepth = 10
	}

	return fmt.Sprintf("av01.%d.%02d%s.%02d", profile, level, tier, bitDepth)
}

// Marshal generates the codecs parameter of a codec.
// It returns an empty string when the codec does not carry enough information.
func Marshal(codec codecs.Codec) string {
	switch tcodec := codec.(type) {
	case *codecs.VP8:
		return "vp8"

	case *codecs.VP9:
		// https://www.webmproject.org/vp9/mp4/
		if tcodec.BitDepth == 0 {
			return "vp9"
		}
		return fmt.Sprintf("vp09.%02d.10.%02d", tcodec.Profile, tcodec.BitDepth)

	case *codecs.AV1:
		return encodeAV1(tcodec.ConfigurationRecord)

	case *codecs.Opus:
		return "opus"

	case *codecs.Vorbis:
		return "vorbis"
	}

	return ""
}

// MIMEType generates the MIME type of a WebM file that contains given codecs.
func MIMEType(cs []codecs.Codec) string {
	mediaType := "audio/webm"
	var params []string

	for _, c := range cs {
		if c.IsVideo() {
			mediaType = "video/webm"
		}

		if p := Marshal(c); p != "" {
			params = append(params, p)
		}
	}

	if len(params) == 0 {
		return mediaType
	}

	return mediaType + "; codecs=\"" + strings.Join(params, ", ") + "\""
}
