// Package pagedata extracts the embedded JSON payload that Bandcamp pages
// carry in their pagedata element.
//
// Release and download pages render a div with id "pagedata" whose data-blob
// attribute holds an HTML-escaped JSON document describing the page. Extract
// locates the attribute and returns the unescaped payload; Decode additionally
// unmarshals it into a caller-supplied value.
package pagedata
