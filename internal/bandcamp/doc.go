// Package bandcamp speaks the authenticated fan API used to enumerate a
// purchased collection and resolve digital download links.
//
// A collection walk has three stages. CollectionSummary identifies the fan
// behind the session cookies and returns the lookup entries used to seed
// pagination. AllReleases pages through the fan's collection (and optionally
// the hidden shelf) and yields one download page URL per purchased item.
// ItemDownloads fetches a download page and decodes the digital item embedded
// in it, after which ResolveDownload turns the item's unqualified link for a
// chosen encoding into a fetchable URL by polling the statdownload endpoint.
//
// All requests go through the configured Doer, so rate limiting and retry
// behavior live in the transport package, not here.
package bandcamp
