package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var viewColumns = []string{
	"id", "content", "read", "created_at",
	"sender_id", "sender_username", "sender_picture",
	"receiver_id", "receiver_username", "receiver_picture",
	"post_id", "post_title", "post_description", "post_media_url", "post_media_type",
}

func newMockMessageRepo(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewMessageRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestListBetweenQueriesBothDirectionsOldestFirst(t *testing.T) {
	repo, mock := newMockMessageRepo(t)
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(viewColumns).
		AddRow("m1", "hi", false, base, "a", "alice", nil, "b", "bob", nil, nil, nil, nil, nil, nil).
		AddRow("m2", "hey", true, base, "b", "bob", nil, "a", "alice", nil, nil, nil, nil, nil, nil).
		AddRow("m3", "Shared a post", false, base.Add(time.Second), "a", "alice", nil, "b", "bob", nil,
			"p1", "Sunset", "", "https://cdn/p.jpg", "image")
	mock.ExpectQuery(regexp.QuoteMeta(
		`WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1) ORDER BY m.created_at ASC, m.id ASC`)).
		WithArgs("a", "b").
		WillReturnRows(rows)

	got, err := repo.ListBetween(context.Background(), "a", "b")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "b", got[1].Sender.ID)
	assert.True(t, got[1].Read)
	assert.Nil(t, got[0].SharedPost)
	require.NotNil(t, got[2].SharedPost)
	assert.Equal(t, "Sunset", got[2].SharedPost.Title)
}

func TestListBetweenEmptyPair(t *testing.T) {
	repo, mock := newMockMessageRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY m.created_at ASC, m.id ASC`)).
		WithArgs("a", "c").
		WillReturnRows(sqlmock.NewRows(viewColumns))

	got, err := repo.ListBetween(context.Background(), "a", "c")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLatestBetweenTakesNewestOfPair(t *testing.T) {
	repo, mock := newMockMessageRepo(t)
	at := time.Date(2024, 6, 1, 9, 0, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(
		`WHERE (m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1) ORDER BY m.created_at DESC, m.id DESC LIMIT 1`)).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows(viewColumns).
			AddRow("m9", "later", false, at, "b", "bob", nil, "a", "alice", nil, nil, nil, nil, nil, nil))

	got, err := repo.LatestBetween(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "m9", got.ID)
	assert.Equal(t, at, got.CreatedAt)
}

func TestLatestBetweenWithoutMessages(t *testing.T) {
	repo, mock := newMockMessageRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY m.created_at DESC, m.id DESC LIMIT 1`)).
		WithArgs("a", "c").
		WillReturnRows(sqlmock.NewRows(viewColumns))

	_, err := repo.LatestBetween(context.Background(), "a", "c")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestGetViewUnknownMessage(t *testing.T) {
	repo, mock := newMockMessageRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE m.id=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(viewColumns))

	_, err := repo.GetView(context.Background(), "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)
}
