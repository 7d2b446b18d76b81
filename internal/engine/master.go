package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"assetline/internal/domain"
	"assetline/internal/engine/auth"
	"assetline/internal/events"
	"assetline/internal/repo"
)

// Master-data seeding for operators. None of these run as part of a request
// transition.

func (e Engine) requireAdmin(actor domain.User) error {
	role := e.policy().AdminRole
	if !auth.ActorHasRole(actor, role) {
		return forbidden(auth.ForbiddenError{ActorID: actor.ID, Role: role})
	}
	return nil
}

func (e Engine) AddItem(ctx context.Context, it domain.Item, actorID string) (domain.Item, error) {
	it.ID = strings.TrimSpace(it.ID)
	if it.ID == "" {
		return domain.Item{}, badRequest("id", "item id is required")
	}
	if strings.TrimSpace(it.Name) == "" {
		return domain.Item{}, badRequest("name", "item name is required")
	}
	now := e.stamp()
	it.CreatedAt, it.UpdatedAt = now, now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, err
	}
	defer tx.Rollback()
	// Checked under the write lock so concurrent adds of one id serialize.
	if _, err := e.Repo.GetItem(ctx, tx, it.ID); err == nil {
		return domain.Item{}, badRequest("id", "item %s already exists", it.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Item{}, fmt.Errorf("check item: %w", err)
	}
	if it.CategoryID != "" {
		if err := e.Repo.EnsureCategory(ctx, tx, it.CategoryID, ""); err != nil {
			return domain.Item{}, fmt.Errorf("ensure category: %w", err)
		}
	}
	if err := e.Repo.InsertItem(ctx, tx, it); err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.ItemCreated, "item", it.ID, actorID, events.Payload{"available": it.IsAvailable}); err != nil {
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

// SetItemAvailability overrides one item's flag. It is not coordinated with
// requests that currently hold the item.
func (e Engine) SetItemAvailability(ctx context.Context, itemID string, available bool, actorID string) (domain.Item, error) {
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.OverrideItemAvailability(ctx, tx, itemID, available, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Item{}, notFound("item", itemID)
		}
		return domain.Item{}, err
	}
	if err := e.events().Append(ctx, tx, events.ItemAvailabilitySet, "item", itemID, actorID, events.Payload{"available": available}); err != nil {
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Item{}, err
	}
	e.logger().Warn("item availability overridden", zap.String("item_id", itemID), zap.Bool("available", available))
	return e.GetItem(ctx, itemID)
}

func (e Engine) AddUser(ctx context.Context, u domain.User, actorID string) (domain.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return domain.User{}, badRequest("id", "user id is required")
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	u.CreatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetUser(ctx, tx, u.ID); err == nil {
		return domain.User{}, badRequest("id", "user %s already exists", u.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fmt.Errorf("check user: %w", err)
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	for _, role := range u.Roles {
		if err := e.Repo.AssignRole(ctx, tx, u.ID, role); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.User{}, notFound("role", role)
			}
			return domain.User{}, err
		}
	}
	if err := e.events().Append(ctx, tx, events.UserCreated, "user", u.ID, actorID, events.Payload{"grade": u.Grade, "roles": u.Roles}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.GetUser(ctx, u.ID)
}

func (e Engine) GrantRole(ctx context.Context, userID, roleID, actorID string) (domain.User, error) {
	return e.changeRole(ctx, userID, roleID, actorID, true)
}

func (e Engine) RevokeRole(ctx context.Context, userID, roleID, actorID string) (domain.User, error) {
	return e.changeRole(ctx, userID, roleID, actorID, false)
}

func (e Engine) changeRole(ctx context.Context, userID, roleID, actorID string, grant bool) (domain.User, error) {
	if _, err := e.GetUser(ctx, userID); err != nil {
		return domain.User{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	evtType := events.UserRoleGranted
	if grant {
		err = e.Repo.AssignRole(ctx, tx, userID, roleID)
	} else {
		evtType = events.UserRoleRevoked
		err = e.Repo.RevokeRole(ctx, tx, userID, roleID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, notFound("role", roleID)
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := e.events().Append(ctx, tx, evtType, "user", userID, actorID, events.Payload{"role": roleID}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return e.GetUser(ctx, userID)
}
