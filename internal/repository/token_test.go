package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"licensegate/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestTokenRepository_GetByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	columns := []string{"token", "expiry", "is_valid", "device_id", "max_users", "video_links", "video_file_names"}
	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT token, expiry, is_valid, device_id, max_users, video_links, video_file_names
		FROM tokens
		WHERE token = ?
	`)).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("tok-1", "2030-05-01", true, "device-a", 2, `["urlA","urlB"]`, `["a.mp4",null]`))

	record, err := repo.GetByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, "tok-1", record.Token)
	require.Equal(t, "2030-05-01", record.Expiry)
	require.True(t, record.IsValid)
	require.NotNil(t, record.DeviceID)
	require.Equal(t, "device-a", *record.DeviceID)
	require.Equal(t, 2, record.MaxUsers)
	require.Equal(t, []string{"urlA", "urlB"}, record.VideoLinks)
	require.Len(t, record.VideoFileNames, 2)
	require.Equal(t, "a.mp4", *record.VideoFileNames[0])
	require.Nil(t, record.VideoFileNames[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectQuery("SELECT token").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token"}))

	_, err := repo.GetByToken(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrTokenNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Insert_EncodesEmptySequences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec("INSERT INTO tokens").
		WithArgs("tok-1", "2030-05-01", true, nil, 2, "[]", "[]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &model.TokenRecord{
		Token:    "tok-1",
		Expiry:   "2030-05-01",
		IsValid:  true,
		MaxUsers: 2,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Insert_DuplicateToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec("INSERT INTO tokens").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey})

	err := repo.Insert(context.Background(), &model.TokenRecord{Token: "tok-1", Expiry: "2030-05-01"})
	require.ErrorIs(t, err, model.ErrTokenExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Bind_ClaimsSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE tokens
		SET device_id = ?, is_valid = 1
		WHERE token = ? AND (device_id IS NULL OR device_id = ?)
	`)).
		WithArgs("device-a", "tok-1", "device-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	bound, err := repo.Bind(context.Background(), "tok-1", "device-a")
	require.NoError(t, err)
	require.True(t, bound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_Bind_OccupiedSlot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec("UPDATE tokens").
		WithArgs("device-b", "tok-1", "device-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	bound, err := repo.Bind(context.Background(), "tok-1", "device-b")
	require.NoError(t, err)
	require.False(t, bound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_UpdateMaxUsers_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec("UPDATE tokens SET max_users").
		WithArgs(5, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMaxUsers(context.Background(), "missing", 5)
	require.ErrorIs(t, err, model.ErrTokenNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_UpdateAll_Unbinds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE tokens
		SET expiry = ?, is_valid = ?, device_id = ?, max_users = ?
		WHERE token = ?
	`)).
		WithArgs("2032-01-01", false, nil, 3, "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateAll(context.Background(), "tok-1", "2032-01-01", false, nil, 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_UpdateVideoInfo_EncodesParallelSequences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepository(db)

	fileName := "a.mp4"
	mock.ExpectExec("UPDATE tokens SET video_links").
		WithArgs(`["urlA","urlB"]`, `["a.mp4",null]`, "tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateVideoInfo(context.Background(), "tok-1",
		[]string{"urlA", "urlB"}, []*string{&fileName, nil})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_UpdateVideoInfo_LengthMismatch(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewTokenRepository(db)

	err := repo.UpdateVideoInfo(context.Background(), "tok-1", []string{"urlA"}, nil)
	require.Error(t, err)
}
