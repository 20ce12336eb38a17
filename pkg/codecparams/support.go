package codecparams

import (
	"strings"
)

// CheckSupport checks whether codec parameters are supported by this library.
func CheckSupport(codecParams string) bool {
	for _, codec := range strings.Split(codecParams, ",") {
		codec = strings.TrimSpace(codec)

		if codec != "vp8" &&
			codec != "vp9" &&
			!strings.HasPrefix(codec, "vp09.") &&
			!strings.HasPrefix(codec, "av01.") &&
			codec != "opus" &&
			codec != "vorbis" {
			return false
		}
	}
	return true
}
