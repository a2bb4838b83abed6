package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"licensegate/internal/model"
)

type tokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// tokenRow is the raw table shape; the video sequences live in TEXT columns
// as JSON arrays and are decoded into the model on read.
type tokenRow struct {
	Token          string  `db:"token"`
	Expiry         string  `db:"expiry"`
	IsValid        bool    `db:"is_valid"`
	DeviceID       *string `db:"device_id"`
	MaxUsers       int     `db:"max_users"`
	VideoLinks     string  `db:"video_links"`
	VideoFileNames string  `db:"video_file_names"`
}

func (row *tokenRow) toModel() (*model.TokenRecord, error) {
	record := &model.TokenRecord{
		Token:    row.Token,
		Expiry:   row.Expiry,
		IsValid:  row.IsValid,
		DeviceID: row.DeviceID,
		MaxUsers: row.MaxUsers,
	}
	if err := json.Unmarshal([]byte(row.VideoLinks), &record.VideoLinks); err != nil {
		return nil, fmt.Errorf("decode video links for token %s: %w", row.Token, err)
	}
	if err := json.Unmarshal([]byte(row.VideoFileNames), &record.VideoFileNames); err != nil {
		return nil, fmt.Errorf("decode video file names for token %s: %w", row.Token, err)
	}
	return record, nil
}

// encodeSequence marshals a video sequence, keeping nil slices as the empty
// JSON array rather than null so reads always decode to a sequence.
func encodeSequence[T any](seq []T) (string, error) {
	if seq == nil {
		seq = []T{}
	}
	encoded, err := json.Marshal(seq)
	if err != nil {
		return "", fmt.Errorf("encode video sequence: %w", err)
	}
	return string(encoded), nil
}

func (r *tokenRepository) Insert(ctx context.Context, record *model.TokenRecord) error {
	links, err := encodeSequence(record.VideoLinks)
	if err != nil {
		return err
	}
	fileNames, err := encodeSequence(record.VideoFileNames)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tokens (token, expiry, is_valid, device_id, max_users, video_links, video_file_names)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		record.Token,
		record.Expiry,
		record.IsValid,
		record.DeviceID,
		record.MaxUsers,
		links,
		fileNames,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return model.ErrTokenExists
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *tokenRepository) GetByToken(ctx context.Context, token string) (*model.TokenRecord, error) {
	query := `
		SELECT token, expiry, is_valid, device_id, max_users, video_links, video_file_names
		FROM tokens
		WHERE token = ?
	`
	var row tokenRow
	err := r.db.GetContext(ctx, &row, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return row.toModel()
}

// Bind claims the device slot with a single conditional UPDATE. SQLite applies
// the statement atomically, so two devices racing on an unbound token cannot
// both see the slot as free.
func (r *tokenRepository) Bind(ctx context.Context, token, deviceID string) (bool, error) {
	query := `
		UPDATE tokens
		SET device_id = ?, is_valid = 1
		WHERE token = ? AND (device_id IS NULL OR device_id = ?)
	`
	result, err := r.db.ExecContext(ctx, query, deviceID, token, deviceID)
	if err != nil {
		return false, fmt.Errorf("bind token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind token rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *tokenRepository) UpdateMaxUsers(ctx context.Context, token string, maxUsers int) error {
	query := `UPDATE tokens SET max_users = ? WHERE token = ?`
	result, err := r.db.ExecContext(ctx, query, maxUsers, token)
	if err != nil {
		return fmt.Errorf("update max users: %w", err)
	}
	return requireRow(result)
}

func (r *tokenRepository) UpdateAll(ctx context.Context, token, expiry string, isValid bool, deviceID *string, maxUsers int) error {
	query := `
		UPDATE tokens
		SET expiry = ?, is_valid = ?, device_id = ?, max_users = ?
		WHERE token = ?
	`
	result, err := r.db.ExecContext(ctx, query, expiry, isValid, deviceID, maxUsers, token)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return requireRow(result)
}

func (r *tokenRepository) UpdateVideoInfo(ctx context.Context, token string, links []string, fileNames []*string) error {
	if len(links) != len(fileNames) {
		return fmt.Errorf("video sequences length mismatch: %d links, %d file names", len(links), len(fileNames))
	}
	encodedLinks, err := encodeSequence(links)
	if err != nil {
		return err
	}
	encodedFileNames, err := encodeSequence(fileNames)
	if err != nil {
		return err
	}

	query := `UPDATE tokens SET video_links = ?, video_file_names = ? WHERE token = ?`
	result, err := r.db.ExecContext(ctx, query, encodedLinks, encodedFileNames, token)
	if err != nil {
		return fmt.Errorf("update video info: %w", err)
	}
	return requireRow(result)
}

func (r *tokenRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tokens`); err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return count, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}
