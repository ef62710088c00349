package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"library-service/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var borrowColumns = []interface{}{
	"id", "user_id", "book_ids", "borrowed_at", "due_date", "returned_at", "status",
}

// Transition describes a conditional status change: the row moves to To only
// if its current status is one of From. Optional timestamps are written in
// the same statement.
type Transition struct {
	From       []string
	To         string
	DueDate    *time.Time
	ReturnedAt *time.Time
}

// CreateBorrow inserts a Pending borrow for userID and returns the stored
// record. The book id list is persisted as a JSON array.
func (s *Store) CreateBorrow(ctx context.Context, userID int64, bookIDs []int64) (model.Borrow, error) {
	encoded, err := json.Marshal(bookIDs)
	if err != nil {
		return model.Borrow{}, fmt.Errorf("encode book ids: %w", err)
	}

	now := time.Now().UTC()
	id, err := s.insert(ctx, tableBorrows, goqu.Record{
		"user_id":     userID,
		"book_ids":    string(encoded),
		"borrowed_at": now,
		"status":      model.StatusPending,
	})
	if err != nil {
		return model.Borrow{}, err
	}

	return model.Borrow{
		ID:         id,
		UserID:     userID,
		BookIDs:    bookIDs,
		BorrowedAt: now,
		Status:     model.StatusPending,
	}, nil
}

// BorrowByID fetches a single borrow, ErrNotFound when it does not exist.
func (s *Store) BorrowByID(ctx context.Context, id int64) (model.Borrow, error) {
	borrows, err := s.borrowsWhere(ctx, goqu.C("id").Eq(id))
	if err != nil {
		return model.Borrow{}, err
	}
	if len(borrows) == 0 {
		return model.Borrow{}, ErrNotFound
	}
	return borrows[0], nil
}

// BorrowsByStatus lists all borrows currently in the given status.
func (s *Store) BorrowsByStatus(ctx context.Context, status string) ([]model.Borrow, error) {
	return s.borrowsWhere(ctx, goqu.C("status").Eq(status))
}

// BorrowsByUser lists the borrow history of one user, oldest first.
func (s *Store) BorrowsByUser(ctx context.Context, userID int64) ([]model.Borrow, error) {
	return s.borrowsWhere(ctx, goqu.C("user_id").Eq(userID))
}

// TransitionBorrow applies t as a single conditional UPDATE and reports
// whether a row was changed. The status guard lives in the WHERE clause, so
// concurrent callers race on the database's row-level atomicity instead of a
// read-then-write pair: exactly one of them sees true.
func (s *Store) TransitionBorrow(ctx context.Context, id int64, t Transition) (bool, error) {
	rec := goqu.Record{"status": t.To}
	if t.DueDate != nil {
		rec["due_date"] = nullableTime(t.DueDate)
	}
	if t.ReturnedAt != nil {
		rec["returned_at"] = nullableTime(t.ReturnedAt)
	}

	query, args, err := s.dialect.Update(tableBorrows).
		Set(rec).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("status").In(t.From),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build transition: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition borrow %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) borrowsWhere(ctx context.Context, cond goqu.Expression) ([]model.Borrow, error) {
	query, args, err := s.dialect.From(tableBorrows).
		Select(borrowColumns...).
		Where(cond).
		Order(goqu.I("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrow query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query borrows: %w", err)
	}
	defer rows.Close()

	borrows := make([]model.Borrow, 0)
	for rows.Next() {
		var (
			b          model.Borrow
			rawBookIDs []byte
			dueDate    sql.NullTime
			returnedAt sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.UserID, &rawBookIDs, &b.BorrowedAt, &dueDate, &returnedAt, &b.Status); err != nil {
			return nil, fmt.Errorf("scan borrow: %w", err)
		}
		if err := json.Unmarshal(rawBookIDs, &b.BookIDs); err != nil {
			return nil, fmt.Errorf("decode book ids for borrow %d: %w", b.ID, err)
		}
		if dueDate.Valid {
			d := dueDate.Time
			b.DueDate = &d
		}
		if returnedAt.Valid {
			r := returnedAt.Time
			b.ReturnedAt = &r
		}
		borrows = append(borrows, b)
	}
	return borrows, rows.Err()
}
