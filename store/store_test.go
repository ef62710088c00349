package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-service/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1",
		filepath.Join(t.TempDir(), "library.db"))

	st, err := Open(DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestBookCreateAndSearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, b := range []model.Book{
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", NumCopies: 3},
		{Title: "The Silmarillion", Author: "J.R.R. Tolkien", NumCopies: 1},
		{Title: "Dune", Author: "Frank Herbert", NumCopies: 2},
	} {
		id, err := st.CreateBook(ctx, b)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	all, err := st.SearchBooks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byAuthor, err := st.SearchBooks(ctx, "TOLKIEN")
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	byTitle, err := st.SearchBooks(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Frank Herbert", byTitle[0].Author)

	none, err := st.SearchBooks(ctx, "tolstoy")
	require.NoError(t, err)
	assert.Empty(t, none)

	book, err := st.BookByID(ctx, byTitle[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)

	_, err = st.BookByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserUniqueEmail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateUser(ctx, model.User{
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$...",
		Role:         model.RoleLibrarian,
		Phone:        "0123456789",
	})
	require.NoError(t, err)

	byEmail, err := st.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, model.RoleLibrarian, byEmail.Role)

	byID, err := st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	_, err = st.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.CreateUser(ctx, model.User{
		Email:        "alice@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
	})
	assert.Error(t, err, "duplicate email must violate the unique constraint")
}

func TestBorrowRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateBorrow(ctx, 7, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.Status)

	fetched, err := st.BorrowByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, fetched.BookIDs)
	assert.Equal(t, int64(7), fetched.UserID)
	assert.Nil(t, fetched.DueDate)
	assert.Nil(t, fetched.ReturnedAt)
	assert.WithinDuration(t, time.Now().UTC(), fetched.BorrowedAt, time.Minute)

	pending, err := st.BorrowsByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	byUser, err := st.BorrowsByUser(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	otherUser, err := st.BorrowsByUser(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, otherUser)

	_, err = st.BorrowByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionBorrowGuard(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateBorrow(ctx, 1, []int64{5})
	require.NoError(t, err)

	due := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	ok, err := st.TransitionBorrow(ctx, created.ID, Transition{
		From:    []string{model.StatusPending},
		To:      model.StatusApproval,
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// guard: the row is no longer Pending
	ok, err = st.TransitionBorrow(ctx, created.ID, Transition{
		From:    []string{model.StatusPending},
		To:      model.StatusApproval,
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	fetched, err := st.BorrowByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproval, fetched.Status)
	require.NotNil(t, fetched.DueDate)
	assert.True(t, due.Equal(fetched.DueDate.UTC()))
}

func TestTransitionBorrowConcurrent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateBorrow(ctx, 1, []int64{5})
	require.NoError(t, err)

	due := time.Now().UTC().AddDate(0, 0, 14)
	results := make([]bool, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = st.TransitionBorrow(ctx, created.ID, Transition{
				From:    []string{model.StatusPending},
				To:      model.StatusApproval,
				DueDate: &due,
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0], results[1], "exactly one concurrent transition must win")
}
