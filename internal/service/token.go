package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"licensegate/internal/cache"
	"licensegate/internal/model"
	"licensegate/internal/repository"
)

// TokenService owns the token records and the single-slot binding rule. It is
// the only component with real behavior; the HTTP layer just translates
// requests into these calls.
type TokenService struct {
	tokenRepo repository.TokenRepository
	cache     cache.TokenCache
}

func NewTokenService(tokenRepo repository.TokenRepository, tokenCache cache.TokenCache) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		cache:     tokenCache,
	}
}

// Seed inserts the pre-provisioned tokens when the store is empty. A store
// with any records at all is left untouched, so restarting the service never
// overwrites existing data.
func (s *TokenService) Seed(ctx context.Context, tokens []string, maxUsers int) error {
	count, err := s.tokenRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed: count tokens: %w", err)
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("Store already populated, skipping seed")
		return nil
	}

	expiry := model.DefaultExpiry(time.Now())
	for _, token := range tokens {
		record := &model.TokenRecord{
			Token:    token,
			Expiry:   expiry,
			IsValid:  true,
			MaxUsers: maxUsers,
		}
		if err := s.tokenRepo.Insert(ctx, record); err != nil {
			// Two instances racing on a fresh store can both pass the empty
			// check; the loser's insert is a no-op.
			if errors.Is(err, model.ErrTokenExists) {
				continue
			}
			return fmt.Errorf("seed token %s: %w", token, err)
		}
		log.Info().Str("token", token).Str("expiry", expiry).Msg("Seeded token")
	}
	return nil
}

// Bind claims the token's device slot for deviceID. The slot is granted when
// it is free or already held by the same device (idempotent rebind). When a
// different device holds the slot, nothing is mutated and the result carries
// Bound=false with the occupying record: a soft rejection, not an error.
func (s *TokenService) Bind(ctx context.Context, token, deviceID string) (*model.BindResult, error) {
	bound, err := s.tokenRepo.Bind(ctx, token, deviceID)
	if err != nil {
		return nil, err
	}

	if bound {
		s.invalidate(ctx, token)
	}

	record, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if bound {
		log.Info().Str("token", token).Str("device_id", deviceID).Msg("Device bound to token")
	} else {
		occupant := ""
		if record.DeviceID != nil {
			occupant = *record.DeviceID
		}
		log.Info().
			Str("token", token).
			Str("device_id", deviceID).
			Str("occupant", occupant).
			Msg("Bind rejected, slot occupied")
	}

	return &model.BindResult{Record: record, Bound: bound}, nil
}

// Status returns the full record, read through the cache.
func (s *TokenService) Status(ctx context.Context, token string) (*model.TokenRecord, error) {
	if record, found, err := s.cache.Get(ctx, token); err != nil {
		log.Warn().Str("token", token).Err(err).Msg("Cache read failed, falling back to store")
	} else if found {
		return record, nil
	}

	record, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, record); err != nil {
		log.Warn().Str("token", token).Err(err).Msg("Cache write failed")
	}
	return record, nil
}

// Create inserts a new token with an empty binding and no video metadata.
func (s *TokenService) Create(ctx context.Context, token, expiry string, maxUsers int) (*model.TokenRecord, error) {
	record := &model.TokenRecord{
		Token:          token,
		Expiry:         expiry,
		IsValid:        true,
		MaxUsers:       maxUsers,
		VideoLinks:     []string{},
		VideoFileNames: []*string{},
	}
	if err := s.tokenRepo.Insert(ctx, record); err != nil {
		return nil, err
	}
	log.Info().Str("token", token).Str("expiry", expiry).Int("max_users", maxUsers).Msg("Token created")
	return record, nil
}

// UpdateMaxUsers overwrites the capacity hint, leaving every other field as is.
func (s *TokenService) UpdateMaxUsers(ctx context.Context, token string, maxUsers int) error {
	if err := s.tokenRepo.UpdateMaxUsers(ctx, token, maxUsers); err != nil {
		return err
	}
	s.invalidate(ctx, token)
	log.Info().Str("token", token).Int("max_users", maxUsers).Msg("Updated max users")
	return nil
}

// UpdateAll is the administrative overwrite: expiry, validity, device slot and
// capacity are replaced wholesale, bypassing the binding guard. A nil deviceID
// unbinds the token.
func (s *TokenService) UpdateAll(ctx context.Context, token, expiry string, isValid bool, deviceID *string, maxUsers int) error {
	if err := s.tokenRepo.UpdateAll(ctx, token, expiry, isValid, deviceID, maxUsers); err != nil {
		return err
	}
	s.invalidate(ctx, token)
	log.Info().Str("token", token).Bool("is_valid", isValid).Msg("Token overwritten")
	return nil
}

// UpdateVideoInfo splits the (link, fileName) pairs into the two parallel
// sequences and replaces both atomically. A pair without a file name stores a
// null at that index so positions keep lining up.
func (s *TokenService) UpdateVideoInfo(ctx context.Context, token string, videoInfo []model.VideoInfo) (*model.TokenRecord, error) {
	links := make([]string, len(videoInfo))
	fileNames := make([]*string, len(videoInfo))
	for i, info := range videoInfo {
		links[i] = info.Link
		fileNames[i] = info.FileName
	}

	if err := s.tokenRepo.UpdateVideoInfo(ctx, token, links, fileNames); err != nil {
		return nil, err
	}
	s.invalidate(ctx, token)

	record, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("token", token).Int("videos", len(videoInfo)).Msg("Updated video info")
	return record, nil
}

// invalidate drops the cached record after a mutation. Cache failures are
// logged and swallowed: the store is the source of truth and the entry
// expires on its own TTL.
func (s *TokenService) invalidate(ctx context.Context, token string) {
	if err := s.cache.Invalidate(ctx, token); err != nil {
		log.Warn().Str("token", token).Err(err).Msg("Cache invalidation failed")
	}
}
