package repository

import (
	"context"

	"licensegate/internal/model"
)

type TokenRepository interface {
	// Insert creates a new token record. Returns model.ErrTokenExists when
	// the token is already present.
	Insert(ctx context.Context, record *model.TokenRecord) error
	// GetByToken returns the full record or model.ErrTokenNotFound.
	GetByToken(ctx context.Context, token string) (*model.TokenRecord, error)
	// Bind attempts to claim the device slot. The conditional update succeeds
	// when the slot is free or already held by deviceID; bound reports whether
	// the claim landed. The check-then-set runs as a single statement so
	// concurrent binds on one token serialize at the store.
	Bind(ctx context.Context, token, deviceID string) (bound bool, err error)
	// UpdateMaxUsers overwrites max_users only.
	UpdateMaxUsers(ctx context.Context, token string, maxUsers int) error
	// UpdateAll overwrites expiry, is_valid, device_id and max_users
	// wholesale, bypassing the binding guard. deviceID nil unbinds.
	UpdateAll(ctx context.Context, token, expiry string, isValid bool, deviceID *string, maxUsers int) error
	// UpdateVideoInfo replaces both video sequences in one statement.
	// links and fileNames must be the same length.
	UpdateVideoInfo(ctx context.Context, token string, links []string, fileNames []*string) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}
