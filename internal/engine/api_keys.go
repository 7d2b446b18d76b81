package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"assetline/internal/domain"
	"assetline/internal/events"
	"assetline/internal/repo"
)

const apiKeyPrefix = "al_"

// CreateAPIKey issues a key that authenticates as userID. The raw key is only
// returned here; the store keeps its digest.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name, actorID string) (domain.APIKey, string, error) {
	if _, err := e.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.APIKeyCreated, "user", userID, actorID, events.Payload{"key_id": key.ID, "name": key.Name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, userID)
}

func (e Engine) RevokeAPIKey(ctx context.Context, keyID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, keyID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("api key", keyID)
		}
		return err
	}
	if err := e.events().Append(ctx, tx, events.APIKeyRevoked, "api_key", keyID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
