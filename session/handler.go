package session

import (
	"encoding/json"
	"net/http"

	"github.com/habityzer/layer/config"
)

// Handler serves the current user's View as JSON. Without a recognized
// session it answers 401; when the backend fails, 502.
func (s *Service) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Profile(r.Context(), w, r)
		switch {
		case err != nil:
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"statusCode":    http.StatusBadGateway,
				"statusMessage": "Unable to load profile",
			})
		case p == nil:
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"statusCode":    http.StatusUnauthorized,
				"statusMessage": "Unauthorized - Please log in",
			})
		default:
			writeJSON(w, http.StatusOK, NewView(p))
		}
	}
}

// StorageKeys are the browser storage keys an E2E app token may have been
// persisted under, scoped first.
func (s *Service) StorageKeys() []string {
	return []string{s.cookies.E2EStorageKey(), config.LegacyE2EStorageKey}
}

// LogoutHandler ends the session: it forgets the cached profile, expires the
// token cookies and both E2E cookies, then hands over to next to end the
// provider session.
func (s *Service) LogoutHandler(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Forget(r)
		for _, name := range []string{
			s.cookies.IdToken(),
			s.cookies.AccessToken(),
			s.cookies.RefreshToken(),
			s.cookies.E2EToken(),
			s.cookies.LegacyE2EToken(),
		} {
			if name == "" {
				continue
			}
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				Secure:   s.cookies.Secure,
				SameSite: s.cookies.SameSite,
			})
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
