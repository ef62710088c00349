package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"library-service/auth"
)

type borrowRequest struct {
	BookIDList []int64 `json:"book_id_list"`
}

func (s *Server) handleRequestBorrow(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := s.borrows.Request(r.Context(), id.UserID, req.BookIDList)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "borrow request created",
		"id":      b.ID,
	})
}

func (s *Server) handlePendingBorrows(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	borrows, err := s.borrows.Pending(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrows)
}

func (s *Server) handleApproveBorrow(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	id, ok := borrowID(w, r)
	if !ok {
		return
	}

	due, err := s.borrows.Approve(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "borrow approved",
		"due_date": due.Format(time.RFC3339),
	})
}

func (s *Server) handleRejectBorrow(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	id, ok := borrowID(w, r)
	if !ok {
		return
	}

	if err := s.borrows.Reject(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "borrow rejected"})
}

func (s *Server) handleReturnBorrow(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	id, ok := borrowID(w, r)
	if !ok {
		return
	}

	if err := s.borrows.Return(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "marked as returned"})
}

func borrowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid borrow id")
		return 0, false
	}
	return id, true
}
