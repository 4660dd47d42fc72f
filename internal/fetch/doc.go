// Package fetch saves resolved download URLs to disk.
//
// Downloads stream into a .part file beside the target and are renamed into
// place only after the copy completes, so an interrupted run never leaves a
// truncated archive under the final name. File names come from the response's
// Content-Disposition header when present and from the release metadata
// otherwise.
//
// Qualified download URLs are pre-signed and served by the platform's CDN,
// outside the fan API's rate budget, so the downloader deliberately does not
// share the API transport: a long archive transfer must not be cut off by the
// API request timeout.
package fetch
