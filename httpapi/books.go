package httpapi

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"

	"library-service/auth"
	"library-service/cache"
	"library-service/model"
)

const cacheMaxAge = 3600

var emptyJSONList = []byte("[]")

type addBookRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	NumCopies *int   `json:"num_copies"`
}

// handleFindBooks serves the catalog search through the read-through cache
// with ETag revalidation. A cache outage degrades to direct store reads.
func (s *Server) handleFindBooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := cache.Key(r.URL.Query().Get("query"))
	validator := clientValidator(r)

	res, err := s.cache.Checked(ctx, key, validator)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if res.Hit {
		if res.NotModified {
			setCacheHeaders(w, res.ETag, cacheMaxAge)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		s.writeBooksPayload(w, res.Payload, res.ETag)
		return
	}

	books, err := s.store.SearchBooks(ctx, r.URL.Query().Get("query"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	saved, err := s.cache.Save(ctx, key, books)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeBooksPayload(w, saved.Payload, saved.ETag)
}

// writeBooksPayload sends the cached JSON as-is. The empty result set keeps
// its ETag so an immediate retry can still be answered 304, but the status
// is the uniform 404 for empty collections.
func (s *Server) writeBooksPayload(w http.ResponseWriter, payload []byte, etag string) {
	setCacheHeaders(w, etag, cacheMaxAge)

	if len(payload) == 0 || bytes.Equal(payload, emptyJSONList) {
		writeError(w, http.StatusNotFound, "No books found.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// handleAddBook creates a catalog entry. Cached search results are not
// invalidated: readers may see the old catalog for up to the cache TTL.
func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing title")
		return
	}

	numCopies := 1
	if req.NumCopies != nil {
		numCopies = *req.NumCopies
	}
	if numCopies < 0 {
		writeError(w, http.StatusBadRequest, "num_copies must not be negative")
		return
	}

	id, err := s.store.CreateBook(r.Context(), model.Book{
		Title:     req.Title,
		Author:    req.Author,
		NumCopies: numCopies,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "book added",
		"id":      id,
	})
}
