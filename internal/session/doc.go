// Package session turns exported browser cookies into an authenticated
// cookie jar.
//
// Two export dialects are supported: the cookies.json shape produced by
// browser extensions ("Name raw"/"Content raw" records) and Netscape
// cookies.txt. Format sniffing handles the common case where users do not
// know which one they have. The resulting jar is installed on the shared
// transport so every platform request carries the login session.
//
// A file that yields no cookie usable for the platform site is a credential
// error and aborts startup; there is no anonymous mode.
package session
