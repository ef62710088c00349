package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"library-service/model"
)

// CreateBook inserts a catalog entry and returns its id.
func (s *Store) CreateBook(ctx context.Context, b model.Book) (int64, error) {
	return s.insert(ctx, tableBooks, goqu.Record{
		"title":      b.Title,
		"author":     b.Author,
		"num_copies": b.NumCopies,
	})
}

// BookByID fetches a single book, ErrNotFound when it does not exist.
func (s *Store) BookByID(ctx context.Context, id int64) (model.Book, error) {
	query, args, err := s.dialect.From(tableBooks).
		Select("id", "title", "author", "num_copies").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return model.Book{}, fmt.Errorf("build book query: %w", err)
	}

	books, err := s.scanBooks(ctx, query, args)
	if err != nil {
		return model.Book{}, err
	}
	if len(books) == 0 {
		return model.Book{}, ErrNotFound
	}
	return books[0], nil
}

// SearchBooks returns books whose title or author contains search,
// case-insensitively. An empty search returns the whole catalog. The empty
// result is a valid empty slice, never an error.
func (s *Store) SearchBooks(ctx context.Context, search string) ([]model.Book, error) {
	ds := s.dialect.From(tableBooks).
		Select("id", "title", "author", "num_copies").
		Order(goqu.I("id").Asc())

	if search != "" {
		// lower(...) LIKE keeps the match case-insensitive on both dialects.
		pattern := "%" + strings.ToLower(search) + "%"
		ds = ds.Where(goqu.Or(
			goqu.Func("lower", goqu.C("title")).Like(pattern),
			goqu.Func("lower", goqu.C("author")).Like(pattern),
		))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book search: %w", err)
	}
	return s.scanBooks(ctx, query, args)
}

func (s *Store) scanBooks(ctx context.Context, query string, args []interface{}) ([]model.Book, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.NumCopies); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}
