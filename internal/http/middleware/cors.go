package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig controls which browser origins may call the bot. Empty header
// and method lists fall back to what the chat endpoints need.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedHeaders []string
	AllowedMethods []string
	MaxAge         time.Duration
}

var (
	defaultCORSHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
)

// CORS echoes allowlisted origins. "*" in AllowedOrigins allows any origin.
// Preflights for allowed origins are answered with 204; preflights from
// other origins are passed on without CORS headers.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			allowAny = true
		default:
			allow[strings.ToLower(origin)] = struct{}{}
		}
	}

	headers := joinOr(cfg.AllowedHeaders, defaultCORSHeaders)
	methods := strings.ToUpper(joinOr(cfg.AllowedMethods, defaultCORSMethods))
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			_, listed := allow[strings.ToLower(origin)]
			if !allowAny && !listed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Max-Age", maxAgeSeconds)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
			next.ServeHTTP(w, r)
		})
	}
}

func joinOr(values, fallback []string) string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = fallback
	}
	return strings.Join(out, ", ")
}
