package httpapi

import (
	"net/http"

	"library-service/auth"
)

type registrationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates an account. Registration is librarian-gated: the
// service is bootstrapped with a librarian through the CLI.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user created",
		"id":      id,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, role, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"role":         role,
	})
}

// handleLogout blacklists the presented token for its remaining lifetime.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// handleMyBorrows lists the caller's own borrow history; the scope comes
// from the token identity, never from request parameters.
func (s *Server) handleMyBorrows(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	borrows, err := s.borrows.History(r.Context(), id.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, borrows)
}
