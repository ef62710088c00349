// Package borrow enforces the state machine governing a borrow request:
// Pending at creation, Approval or Rejected by librarian decision, Return
// once the books come back. Rejected and Return are terminal. Transitions
// are compare-and-set updates in the store, so two librarians racing on the
// same request cannot both win.
package borrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"library-service/model"
	"library-service/store"
)

// LoanDays is how long an approved borrow may be kept out.
const LoanDays = 14

var (
	// ErrEmptyBookList is returned when a request names no books.
	ErrEmptyBookList = errors.New("list books want to borrow is empty")
	// ErrNotFound is returned when the borrow id does not exist.
	ErrNotFound = errors.New("borrow not found")
	// ErrAlreadyProcessed is returned when a transition's status guard fails.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrNoBorrows signals an empty listing.
	ErrNoBorrows = errors.New("no borrows found")
)

// Service is the borrow lifecycle manager.
type Service struct {
	store *store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService builds the lifecycle manager on top of the persistence
// capability.
func NewService(st *store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log, now: time.Now}
}

// Request creates a Pending borrow for userID covering bookIDs.
func (s *Service) Request(ctx context.Context, userID int64, bookIDs []int64) (model.Borrow, error) {
	if len(bookIDs) == 0 {
		return model.Borrow{}, ErrEmptyBookList
	}

	b, err := s.store.CreateBorrow(ctx, userID, bookIDs)
	if err != nil {
		return model.Borrow{}, fmt.Errorf("create borrow: %w", err)
	}

	s.log.Info("borrow requested",
		zap.Int64("borrow_id", b.ID),
		zap.Int64("user_id", userID),
		zap.Int("books", len(bookIDs)))
	return b, nil
}

// Pending lists all borrows awaiting a librarian decision. ErrNoBorrows
// signals the empty set so the API layer can answer it uniformly.
func (s *Service) Pending(ctx context.Context) ([]model.Borrow, error) {
	borrows, err := s.store.BorrowsByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, err
	}
	if len(borrows) == 0 {
		return nil, ErrNoBorrows
	}
	return borrows, nil
}

// History lists the caller's own borrows, oldest first.
func (s *Service) History(ctx context.Context, userID int64) ([]model.Borrow, error) {
	borrows, err := s.store.BorrowsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(borrows) == 0 {
		return nil, ErrNoBorrows
	}
	return borrows, nil
}

// Approve moves a Pending borrow to Approval and stamps the due date
// LoanDays from today. A borrow in any other state fails with
// ErrAlreadyProcessed; under concurrent approvals exactly one caller
// succeeds.
func (s *Service) Approve(ctx context.Context, id int64) (time.Time, error) {
	due := s.dueDate()
	err := s.transition(ctx, id, store.Transition{
		From:    []string{model.StatusPending},
		To:      model.StatusApproval,
		DueDate: &due,
	})
	if err != nil {
		return time.Time{}, err
	}

	s.log.Info("borrow approved", zap.Int64("borrow_id", id), zap.Time("due_date", due))
	return due, nil
}

// Reject moves a Pending borrow to the terminal Rejected state.
func (s *Service) Reject(ctx context.Context, id int64) error {
	err := s.transition(ctx, id, store.Transition{
		From: []string{model.StatusPending},
		To:   model.StatusRejected,
	})
	if err != nil {
		return err
	}

	s.log.Info("borrow rejected", zap.Int64("borrow_id", id))
	return nil
}

// Return marks an Approval or Borrowed borrow as returned and stamps
// returned_at. Re-marking a returned borrow fails with ErrAlreadyProcessed
// and never overwrites the original returned_at.
func (s *Service) Return(ctx context.Context, id int64) error {
	returnedAt := s.now().UTC()
	err := s.transition(ctx, id, store.Transition{
		From:       []string{model.StatusApproval, model.StatusBorrowed},
		To:         model.StatusReturn,
		ReturnedAt: &returnedAt,
	})
	if err != nil {
		return err
	}

	s.log.Info("borrow returned", zap.Int64("borrow_id", id))
	return nil
}

// transition runs the conditional update and distinguishes "no such borrow"
// from "guard failed" after the fact.
func (s *Service) transition(ctx context.Context, id int64, t store.Transition) error {
	ok, err := s.store.TransitionBorrow(ctx, id, t)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := s.store.BorrowByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return ErrAlreadyProcessed
}

// dueDate is midnight UTC of today plus the loan period, matching the
// calendar-day semantics of the due date.
func (s *Service) dueDate() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, LoanDays)
}
