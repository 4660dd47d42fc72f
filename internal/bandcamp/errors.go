package bandcamp

import "errors"

var (
	// ErrNoDownloads reports a digital item that offers no downloads at all.
	ErrNoDownloads = errors.New("bandcamp: item offers no downloads")

	// ErrEncodingUnavailable reports an item that does not offer the
	// requested encoding.
	ErrEncodingUnavailable = errors.New("bandcamp: requested encoding not offered")

	// ErrStatPayloadNotFound reports a statdownload response that carries no
	// recognizable result payload.
	ErrStatPayloadNotFound = errors.New("bandcamp: stat response carries no payload")

	// ErrNoQualifiedURL reports that link resolution finished without a
	// fetchable download URL.
	ErrNoQualifiedURL = errors.New("bandcamp: no qualified download url")
)
