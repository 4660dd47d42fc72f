package bandcamp

import (
	"fmt"
	"strings"
)

// Format identifies an audio encoding Bandcamp offers for digital purchases.
// The wire values double as the keys of a digital item's downloads table.
type Format string

const (
	FormatMP3V0  Format = "mp3-v0"
	FormatMP3320 Format = "mp3-320"
	FormatFLAC   Format = "flac"
	FormatAACHi  Format = "aac-hi"
	FormatVorbis Format = "vorbis"
	FormatALAC   Format = "alac"
	FormatWAV    Format = "wav"
	FormatAIFF   Format = "aiff-lossless"
)

// Formats returns every supported encoding in display order.
func Formats() []Format {
	return []Format{
		FormatMP3V0,
		FormatMP3320,
		FormatFLAC,
		FormatAACHi,
		FormatVorbis,
		FormatALAC,
		FormatWAV,
		FormatAIFF,
	}
}

// ParseFormat resolves a user-supplied encoding name, ignoring case and
// surrounding whitespace.
func ParseFormat(value string) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, format := range Formats() {
		if format == normalized {
			return format, nil
		}
	}
	return "", fmt.Errorf("bandcamp: unknown audio format %q", value)
}

func (f Format) String() string {
	return string(f)
}

// Description returns the label shown when listing encodings.
func (f Format) Description() string {
	switch f {
	case FormatMP3V0:
		return "MP3 encoded with variable bitrate (V0)"
	case FormatMP3320:
		return "MP3 encoded at a constant 320 kbps"
	case FormatFLAC:
		return "FLAC lossless"
	case FormatAACHi:
		return "High-quality AAC"
	case FormatVorbis:
		return "Ogg Vorbis"
	case FormatALAC:
		return "Apple Lossless"
	case FormatWAV:
		return "Uncompressed WAV"
	case FormatAIFF:
		return "Uncompressed AIFF"
	}
	return string(f)
}
