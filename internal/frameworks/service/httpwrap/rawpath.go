// Package httpwrap provides handler wrappers applied at the service boundary.
package httpwrap

import "net/http"

// ClearRawPath routes on the decoded path. chi prefers RawPath when set,
// so an escaped id such as %2D would otherwise miss the {id} pattern.
// The request is shallow-copied; the caller's URL is left untouched.
func ClearRawPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawPath == "" {
			next.ServeHTTP(w, r)
			return
		}
		u := *r.URL
		u.RawPath = ""
		r2 := r.WithContext(r.Context())
		r2.URL = &u
		next.ServeHTTP(w, r2)
	})
}
