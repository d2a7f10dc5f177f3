package http

import (
	"net/http"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httputil"
)

const internalTokenHeader = "X-Internal-Token"

// InternalOnly guards admin and cron endpoints behind the shared
// service-to-service token. An empty configured token disables the guard,
// which is only acceptable in local development.
func InternalOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get(internalTokenHeader) != token {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "missing or invalid internal token"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON ensures requests with a body declare a JSON content type.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && ct != "application/json" && ct != "application/json; charset=utf-8" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
