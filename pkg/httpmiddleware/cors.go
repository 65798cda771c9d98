package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// Empty, or the single entry "*", allows all origins.
	AllowOrigins []string

	// AllowMethods lists methods allowed in actual requests. Defaults to
	// "GET, POST, PUT, PATCH, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists request headers clients may send. When empty, the
	// preflight's Access-Control-Request-Headers value is echoed back.
	AllowHeaders []string

	// AllowCredentials permits cookies and auth headers on cross-origin
	// requests. Incompatible with the wildcard origin, so when set the
	// middleware echoes the matched origin instead of "*".
	AllowCredentials bool

	// MaxAge is how long (seconds) browsers may cache preflight results.
	MaxAge int
}

// CORS returns a middleware handling cross-origin resource sharing,
// including preflight requests. Origin matching is case-insensitive and the
// Vary header is maintained so shared caches never serve a response for the
// wrong origin.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}
	if cfg.AllowCredentials {
		allowAll = false
	}

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")

	resolveOrigin := func(origin string) string {
		if allowAll {
			return "*"
		}
		return allowed[strings.ToLower(origin)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				if !allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := resolveOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin != "" {
					w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
					w.Header().Set("Access-Control-Allow-Methods", allowMethods)
					switch {
					case allowHeaders != "":
						w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
					case r.Header.Get("Access-Control-Request-Headers") != "":
						w.Header().Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
					}
					if cfg.AllowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					if cfg.MaxAge > 0 {
						w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if !allowAll {
				w.Header().Add("Vary", "Origin")
			}
			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
