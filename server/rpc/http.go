package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/velotype/velotype/server/auth"
	"github.com/velotype/velotype/server/daily"
	"github.com/velotype/velotype/server/db/iface"
)

// Request bodies beyond this are rejected outright. The largest legitimate
// payload is a daily submission carrying the full typed text.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func handleError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, &errorResponse{Message: message, Code: code})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Could not encode response")
	}
}

// decodeJSON reads a bounded request body into dst and writes the 400 itself
// on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handleError(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// authed resolves the caller from the bearer token, answering 401 itself when
// the request carries none or the token does not verify.
func (s *Service) authed(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		handleError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	ident, err := s.cfg.Auth.Verify(token)
	if err != nil {
		handleError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return ident, true
}

// caller is the optional variant of authed: no token yields a nil identity,
// but a token that fails verification is still a hard 401 rather than a
// silent downgrade to anonymous.
func (s *Service) caller(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		return nil, true
	}
	ident, err := s.cfg.Auth.Verify(token)
	if err != nil {
		handleError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return ident, true
}

func (s *Service) database(w http.ResponseWriter) (iface.Database, bool) {
	if s.cfg.Database == nil {
		handleError(w, "database unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.cfg.Database, true
}

func (s *Service) dailyService(w http.ResponseWriter) (*daily.Service, bool) {
	if s.cfg.Daily == nil {
		handleError(w, "daily challenge unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.cfg.Daily, true
}

// queryLimit parses a ?limit= parameter, falling back to def and clamping to
// max. Malformed and non-positive values fall back rather than erroring.
func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
