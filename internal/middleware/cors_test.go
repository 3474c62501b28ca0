package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseWildcardOrigin(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantNil bool
		scheme  string
		suffix  string
	}{
		{
			name:    "valid https wildcard",
			pattern: "https://*.example.com",
			scheme:  "https://",
			suffix:  ".example.com",
		},
		{
			name:    "valid http wildcard",
			pattern: "http://*.localhost.dev",
			scheme:  "http://",
			suffix:  ".localhost.dev",
		},
		{
			name:    "dashboard preview deployments",
			pattern: "https://*.nillabg-dash.pages.dev",
			scheme:  "https://",
			suffix:  ".nillabg-dash.pages.dev",
		},
		{name: "invalid - no scheme", pattern: "*.example.com", wantNil: true},
		{name: "invalid - bare wildcard", pattern: "*", wantNil: true},
		{name: "invalid - wildcard at end", pattern: "https://example.*", wantNil: true},
		{name: "invalid - multiple wildcards", pattern: "https://*.*.example.com", wantNil: true},
		{name: "invalid - no dot after wildcard", pattern: "https://*example.com", wantNil: true},
		{name: "invalid - single part domain", pattern: "https://*.com", wantNil: true},
		{name: "exact origin - not a wildcard", pattern: "https://example.com", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseWildcardOrigin(tt.pattern)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseWildcardOrigin(%q) = %+v, want nil", tt.pattern, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseWildcardOrigin(%q) = nil, want non-nil", tt.pattern)
			}
			if got.scheme != tt.scheme {
				t.Errorf("scheme = %q, want %q", got.scheme, tt.scheme)
			}
			if got.suffix != tt.suffix {
				t.Errorf("suffix = %q, want %q", got.suffix, tt.suffix)
			}
		})
	}
}

func TestWildcardOriginMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		origin  string
		want    bool
	}{
		{"simple subdomain match", "https://*.example.com", "https://app.example.com", true},
		{"preview deployment", "https://*.nillabg-dash.pages.dev", "https://a1b2c3d4.nillabg-dash.pages.dev", true},
		{"wrong scheme", "https://*.example.com", "http://app.example.com", false},
		{"wrong domain", "https://*.example.com", "https://app.other.com", false},
		{"nested subdomain - should not match", "https://*.example.com", "https://a.b.example.com", false},
		{"no subdomain - should not match", "https://*.example.com", "https://example.com", false},
		{"partial match attack - should not match", "https://*.example.com", "https://evil-example.com", false},
		{"suffix injection attack - should not match", "https://*.example.com", "https://app.example.com.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wildcard := parseWildcardOrigin(tt.pattern)
			if wildcard == nil {
				t.Fatalf("parseWildcardOrigin(%q) = nil", tt.pattern)
			}
			if got := wildcard.matches(tt.origin); got != tt.want {
				t.Errorf("wildcard.matches(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func corsRouter(allowed string) *gin.Engine {
	r := gin.New()
	r.Use(CORS(allowed))
	r.GET("/api/v1/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allow all", "", http.MethodGet, "https://anything.test", http.StatusOK, "*"},
		{"exact origin", "https://dash.example.com", http.MethodGet, "https://dash.example.com", http.StatusOK, "https://dash.example.com"},
		{"wildcard origin", "https://dash.example.com, https://*.preview.dev", http.MethodGet, "https://pr-12.preview.dev", http.StatusOK, "https://pr-12.preview.dev"},
		{"unknown origin rejected", "https://dash.example.com", http.MethodGet, "https://evil.test", http.StatusForbidden, ""},
		{"no origin header", "https://dash.example.com", http.MethodGet, "", http.StatusOK, ""},
		{"preflight allowed", "https://dash.example.com", http.MethodOptions, "https://dash.example.com", http.StatusNoContent, "https://dash.example.com"},
		{"preflight rejected", "https://dash.example.com", http.MethodOptions, "https://evil.test", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/metrics", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()
			corsRouter(tt.allowed).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}
