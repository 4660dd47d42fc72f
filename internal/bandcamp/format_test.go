package bandcamp_test

import (
	"testing"

	"milkcrate/internal/bandcamp"
)

func TestParseFormatNormalizesInput(t *testing.T) {
	cases := map[string]bandcamp.Format{
		"flac":          bandcamp.FormatFLAC,
		" FLAC ":        bandcamp.FormatFLAC,
		"Mp3-320":       bandcamp.FormatMP3320,
		"aiff-lossless": bandcamp.FormatAIFF,
		"VORBIS":        bandcamp.FormatVorbis,
	}
	for input, want := range cases {
		got, err := bandcamp.ParseFormat(input)
		if err != nil {
			t.Fatalf("ParseFormat(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := bandcamp.ParseFormat("ogg"); err == nil {
		t.Fatal("ParseFormat accepted unknown format")
	}
}

func TestFormatsCoverEveryEncoding(t *testing.T) {
	formats := bandcamp.Formats()
	if len(formats) != 8 {
		t.Fatalf("Formats returned %d entries, want 8", len(formats))
	}
	for _, format := range formats {
		if format.Description() == string(format) {
			t.Fatalf("format %q has no description", format)
		}
	}
}

func TestReleaseYearFallsBackToTokenScan(t *testing.T) {
	cases := []struct {
		date string
		want int
	}{
		{"17 Dec 2021 00:00:00 GMT", 2021},
		{"09 Dec 2022 09:30:00 GMT", 2022},
		{"sometime in 1997 maybe", 1997},
		{"no year here", 0},
		{"", 0},
	}
	for _, tc := range cases {
		item := &bandcamp.DigitalItem{PackageReleaseDate: tc.date}
		if got := item.ReleaseYear(); got != tc.want {
			t.Fatalf("ReleaseYear(%q) = %d, want %d", tc.date, got, tc.want)
		}
	}
}
