package engine

import (
	"context"
	"errors"
	"fmt"

	"assetline/internal/domain"
	"assetline/internal/engine/auth"
	"assetline/internal/repo"
)

// GetRequest returns the request aggregate if callerID may read it: the
// requester, the designated manager, or a holder of an elevated reader role.
func (e Engine) GetRequest(ctx context.Context, requestID, callerID string) (domain.Request, error) {
	tx, err := e.Repo.ReadTx(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()
	caller, err := e.loadActor(ctx, tx, callerID)
	if err != nil {
		return domain.Request{}, err
	}
	req, err := e.loadRequest(ctx, tx, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	if err := e.policy().CanRead(caller, req); err != nil {
		return domain.Request{}, forbidden(err)
	}
	return req, nil
}

// ListMyRequests returns requesterID's requests, newest first.
func (e Engine) ListMyRequests(ctx context.Context, requesterID string) ([]domain.Request, error) {
	return e.listRequests(ctx, repo.RequestFilters{RequesterID: requesterID})
}

// ListPendingManagerApprovals returns every request waiting at the manager stage.
func (e Engine) ListPendingManagerApprovals(ctx context.Context) ([]domain.Request, error) {
	return e.listRequests(ctx, repo.RequestFilters{Statuses: []domain.Status{domain.StatusWaitingManagerApproval}})
}

// PendingManagerApprovalsFor narrows the manager queue to one designated manager.
func (e Engine) PendingManagerApprovalsFor(ctx context.Context, managerID string) ([]domain.Request, error) {
	return e.listRequests(ctx, repo.RequestFilters{
		ManagerID: managerID,
		Statuses:  []domain.Status{domain.StatusWaitingManagerApproval},
	})
}

// ListPendingPicApprovals returns every request waiting at the PIC stage.
func (e Engine) ListPendingPicApprovals(ctx context.Context) ([]domain.Request, error) {
	return e.listRequests(ctx, repo.RequestFilters{Statuses: []domain.Status{domain.StatusWaitingPicApproval}})
}

func (e Engine) listRequests(ctx context.Context, f repo.RequestFilters) ([]domain.Request, error) {
	tx, err := e.Repo.ReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	reqs, err := e.Repo.ListRequests(ctx, tx, f)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

func (e Engine) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	it, err := e.Repo.GetItem(ctx, nil, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return it, notFound("item", itemID)
	}
	return it, err
}

func (e Engine) ListItems(ctx context.Context, f repo.ItemFilters) ([]domain.Item, error) {
	return e.Repo.ListItems(ctx, f)
}

func (e Engine) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, nil, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return u, notFound("user", userID)
	}
	return u, err
}

// ListEvents returns the change feed to admins only.
func (e Engine) ListEvents(ctx context.Context, callerID string, f repo.EventFilters) ([]domain.Event, error) {
	caller, err := e.loadActor(ctx, nil, callerID)
	if err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	return e.Repo.ListEvents(ctx, f)
}

// ManagerQueue is callerID's manager inbox. Admins see every request waiting
// at the manager stage.
func (e Engine) ManagerQueue(ctx context.Context, callerID string) ([]domain.Request, error) {
	caller, err := e.loadActor(ctx, nil, callerID)
	if err != nil {
		return nil, err
	}
	if auth.ActorHasRole(caller, e.policy().AdminRole) {
		return e.ListPendingManagerApprovals(ctx)
	}
	return e.PendingManagerApprovalsFor(ctx, caller.ID)
}

// PicQueue lists requests waiting at the PIC stage for PIC role holders and admins.
func (e Engine) PicQueue(ctx context.Context, callerID string) ([]domain.Request, error) {
	caller, err := e.loadActor(ctx, nil, callerID)
	if err != nil {
		return nil, err
	}
	p := e.policy()
	if !auth.ActorHasAnyRole(caller, []string{p.PICRole, p.AdminRole}) {
		return nil, forbidden(auth.ForbiddenError{ActorID: caller.ID, Role: p.PICRole})
	}
	return e.ListPendingPicApprovals(ctx)
}
