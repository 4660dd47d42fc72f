package pagedata

import (
	"encoding/json"
	"errors"
	"html"
	"regexp"
)

// ErrNotFound reports that the page body carries no pagedata blob.
var ErrNotFound = errors.New("pagedata: no data blob in page body")

// DecodeError reports a blob that was present but did not unmarshal into the
// requested value.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "pagedata: decode data blob: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// blobPattern tolerates attributes before id and between id and data-blob.
// The value class stops at the first unescaped quote.
var blobPattern = regexp.MustCompile(`(?s)<div\s+(?:[^>]*?\s+)?id="pagedata"(?:\s+[^>]*?)?\s+data-blob="((?:[^"\\]|\\.)*)"`)

// Extract returns the HTML-unescaped data-blob payload from a page body. It
// returns ErrNotFound when no pagedata element is present.
func Extract(body []byte) (string, error) {
	match := blobPattern.FindSubmatch(body)
	if match == nil {
		return "", ErrNotFound
	}
	return html.UnescapeString(string(match[1])), nil
}

// Decode extracts the data-blob payload and unmarshals it into v. Extraction
// failures surface unchanged; unmarshal failures are wrapped in a DecodeError.
func Decode(body []byte, v any) error {
	blob, err := Extract(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(blob), v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}
