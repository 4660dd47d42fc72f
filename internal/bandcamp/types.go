package bandcamp

import (
	"strconv"
	"strings"
	"time"
)

// Summary identifies the authenticated fan and carries the collection lookup
// entries used to seed pagination.
type Summary struct {
	FanID    int64
	Username string
	URL      string
	Items    []SummaryItem
}

// SummaryItem is one entry of the fan's collection lookup table.
type SummaryItem struct {
	ItemType  string
	ItemID    int64
	BandID    int64
	Purchased string
}

// DownloadOption describes one encoding offered on a download page.
type DownloadOption struct {
	SizeMB       string `json:"size_mb"`
	Description  string `json:"description"`
	EncodingName string `json:"encoding_name"`
	URL          string `json:"url"`
}

// DigitalItem describes a purchased release as embedded in its download page.
// Downloads is nil for items that exist in the collection but offer no
// digital download, such as vinyl-only purchases.
type DigitalItem struct {
	Downloads          map[Format]DownloadOption `json:"downloads"`
	PackageReleaseDate string                    `json:"package_release_date"`
	Title              string                    `json:"title"`
	Artist             string                    `json:"artist"`
	DownloadType       string                    `json:"download_type"`
	DownloadTypeStr    string                    `json:"download_type_str"`
	ItemType           string                    `json:"item_type"`
	ArtID              int64                     `json:"art_id"`
}

// releaseDateLayout matches the wire form, e.g. "09 Dec 2022 00:00:00 GMT".
const releaseDateLayout = "02 Jan 2006 15:04:05 MST"

// ReleaseYear extracts the year from the package release date, falling back
// to the first four-digit token when the full date does not parse. Zero means
// the year is unknown.
func (d *DigitalItem) ReleaseYear() int {
	date := strings.TrimSpace(d.PackageReleaseDate)
	if date == "" {
		return 0
	}
	if ts, err := time.Parse(releaseDateLayout, date); err == nil {
		return ts.Year()
	}
	for _, field := range strings.Fields(date) {
		if len(field) != 4 {
			continue
		}
		if year, err := strconv.Atoi(field); err == nil {
			return year
		}
	}
	return 0
}
