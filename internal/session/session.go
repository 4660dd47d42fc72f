package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Format selects the cookie export dialect.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatJSON     Format = "json"
	FormatNetscape Format = "netscape"
)

// ErrNoCookies reports that the export contained no cookie usable for the
// platform site.
var ErrNoCookies = errors.New("session: no usable cookies")

// ParseFormat validates a format name from configuration or flags.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatAuto, Format(""):
		return FormatAuto, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatNetscape:
		return FormatNetscape, nil
	default:
		return "", fmt.Errorf("session: unknown cookies format %q", value)
	}
}

// LoadJar reads the cookie export at path and returns a jar primed for
// siteURL. The jar uses the public suffix list so a domain cookie set for
// the apex also covers artist subdomains.
func LoadJar(path string, format Format, siteURL string) (http.CookieJar, error) {
	site, err := url.Parse(siteURL)
	if err != nil {
		return nil, fmt.Errorf("session: parse site url: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read cookies: %w", err)
	}

	if format == FormatAuto || format == "" {
		format = sniffFormat(data)
	}

	var cookies []*http.Cookie
	switch format {
	case FormatJSON:
		cookies, err = parseJSONExport(data)
	case FormatNetscape:
		cookies, err = parseNetscape(data)
	default:
		return nil, fmt.Errorf("session: unknown cookies format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCookies, path)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("session: build cookie jar: %w", err)
	}

	for domain, group := range groupByDomain(cookies, site) {
		target := &url.URL{Scheme: "https", Host: domain, Path: "/"}
		jar.SetCookies(target, group)
	}

	if len(jar.Cookies(site)) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoCookies, site.Host, path)
	}
	return jar, nil
}

func sniffFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatNetscape
}

func parseJSONExport(data []byte) ([]*http.Cookie, error) {
	var records []jsonCookie
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("session: decode cookie export: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(records))
	for _, record := range records {
		if record.Name == "" {
			continue
		}
		cookie := &http.Cookie{
			Name:   record.Name,
			Value:  record.Content,
			Domain: cleanDomain(record.Host),
			Path:   record.Path,
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		if secure, err := strconv.ParseBool(record.SendFor); err == nil {
			cookie.Secure = secure
		}
		if httpOnly, err := strconv.ParseBool(record.HTTPOnly); err == nil {
			cookie.HttpOnly = httpOnly
		}
		switch record.SameSite {
		case "no_restriction":
			cookie.SameSite = http.SameSiteNoneMode
		case "lax":
			cookie.SameSite = http.SameSiteLaxMode
		case "strict":
			cookie.SameSite = http.SameSiteStrictMode
		}
		// Unparseable expirations fall back to session cookies.
		if seconds, err := strconv.ParseInt(strings.TrimSpace(record.Expires), 10, 64); err == nil && seconds > 0 {
			cookie.Expires = time.Unix(seconds, 0)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

// parseNetscape reads the classic seven-field cookies.txt layout: domain,
// subdomain flag, path, secure flag, expiry, name, value.
func parseNetscape(data []byte) ([]*http.Cookie, error) {
	var cookies []*http.Cookie

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("session: cookies line %d: expected 7 tab-separated fields, got %d", lineNum, len(fields))
		}

		cookie := &http.Cookie{
			Domain: cleanDomain(fields[0]),
			Path:   fields[2],
			Secure: strings.EqualFold(fields[3], "TRUE"),
			Name:   fields[5],
			Value:  fields[6],
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		if seconds, err := strconv.ParseInt(fields[4], 10, 64); err == nil && seconds > 0 {
			cookie.Expires = time.Unix(seconds, 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session: read cookies: %w", err)
	}
	return cookies, nil
}

func cleanDomain(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	return strings.TrimPrefix(host, ".")
}

func groupByDomain(cookies []*http.Cookie, site *url.URL) map[string][]*http.Cookie {
	groups := make(map[string][]*http.Cookie)
	for _, cookie := range cookies {
		domain := cookie.Domain
		if domain == "" {
			domain = site.Host
		}
		groups[domain] = append(groups[domain], cookie)
	}
	return groups
}

type jsonCookie struct {
	Name     string `json:"Name raw"`
	Content  string `json:"Content raw"`
	Host     string `json:"Host raw"`
	Path     string `json:"Path raw"`
	Expires  string `json:"Expires raw"`
	SendFor  string `json:"Send for raw"`
	HTTPOnly string `json:"HTTP only raw"`
	SameSite string `json:"SameSite raw"`
}
