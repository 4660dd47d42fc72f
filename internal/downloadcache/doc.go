// Package downloadcache tracks which collection items have already been
// handled across runs.
//
// The cache is a plain text file with one line per release:
//
//	p199396767| "Galerie" (2022) by Anomalie
//
// Titles are stored literally with double quotes escaped as \". The format is
// shared with other collection downloaders, so an existing cache file can be
// dropped in unchanged and keeps working in both directions.
//
// A line that does not match the grammar fails the load with a ParseError
// instead of being dropped: silently losing cache entries would make the next
// run treat every affected item as new.
package downloadcache
