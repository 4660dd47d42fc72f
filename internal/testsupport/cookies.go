package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteCookieExport writes a one-cookie JSON export scoped to domain and
// returns its path. The cookie is not marked secure so it also matches test
// servers speaking plain HTTP.
func WriteCookieExport(t testing.TB, path, domain string) string {
	t.Helper()

	payload := fmt.Sprintf(`[{
		"Name raw": "identity",
		"Content raw": "test-session",
		"Host raw": "https://%s/",
		"Path raw": "/",
		"Expires raw": "0",
		"Send for raw": "false",
		"HTTP only raw": "true",
		"SameSite raw": "lax",
		"This domain only raw": "false",
		"Store raw": "firefox"
	}]`, domain)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
