// Package model holds the record types shared by the store, the lifecycle
// manager and the HTTP layer.
package model

import "time"

// Roles understood by the authorization guard.
const (
	RoleUser      = "user"
	RoleLibrarian = "librarian"
)

// Borrow lifecycle states. Rejected and Return are terminal.
const (
	StatusPending  = "Pending"
	StatusRejected = "Rejected"
	StatusApproval = "Approval"
	StatusBorrowed = "Borrowed"
	StatusReturn   = "Return"
)

// Book is a catalog entry. NumCopies is never negative.
type Book struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	NumCopies int    `json:"num_copies"`
}

// User is a registered account. PasswordHash is a PHC-format argon2id hash
// and is never serialized.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Phone        string `json:"phone"`
}

// Borrow is a request by a user to take out one or more books. Borrows are
// never deleted, only transitioned, so the table doubles as an audit trail.
// BookIDs are weak references; no per-item foreign key is enforced.
type Borrow struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	BookIDs    []int64    `json:"book_id_list"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    *time.Time `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `json:"status"`
}

// ValidRole reports whether role is one the service understands.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleLibrarian
}
