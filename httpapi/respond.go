package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"library-service/auth"
	"library-service/borrow"
	"library-service/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps a service error onto the HTTP taxonomy: validation
// and state-machine conflicts → 400, bad credentials/tokens → 401, wrong
// role → 403, empty results and missing records → 404 (one convention for
// every endpoint), everything else → 500 with the detail kept server-side.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, borrow.ErrEmptyBookList),
		errors.Is(err, borrow.ErrAlreadyProcessed),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrMissingPassword),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, borrow.ErrNotFound),
		errors.Is(err, borrow.ErrNoBorrows),
		errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// clientValidator extracts the If-None-Match value, stripping the weak
// prefix and quotes so it compares against stored fingerprints.
func clientValidator(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-None-Match"))
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func setCacheHeaders(w http.ResponseWriter, etag string, maxAge int) {
	w.Header().Set("ETag", `"`+etag+`"`)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
}
