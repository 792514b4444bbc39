// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markdown

import "bytes"

var (
	sigJPEG   = []byte{0xff, 0xd8, 0xff}
	sigPNG    = []byte("\x89PNG\r\n\x1a\n")
	sigGIF87a = []byte("GIF87a")
	sigGIF89a = []byte("GIF89a")
	sigRIFF   = []byte("RIFF")
	sigWEBP   = []byte("WEBP")
)

// DetectImageFormat returns the file extension matching the container
// signature of data: jpg, png, gif, or webp. Unrecognized data is jpg.
func DetectImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, sigJPEG):
		return "jpg"
	case bytes.HasPrefix(data, sigPNG):
		return "png"
	case bytes.HasPrefix(data, sigGIF87a), bytes.HasPrefix(data, sigGIF89a):
		return "gif"
	case bytes.HasPrefix(data, sigRIFF) && len(data) >= 12 && bytes.Equal(data[8:12], sigWEBP):
		return "webp"
	default:
		return "jpg"
	}
}
