package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"assetline/internal/domain"
	"assetline/internal/engine"
	"assetline/internal/repo"
)

type requestPath struct {
	ID string `path:"id"`
}

func (h handlers) registerRequests(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Create a borrow request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		IdempotencyKey string            `header:"Idempotency-Key"`
		Body           CreateRequestBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key := strings.TrimSpace(input.IdempotencyKey)
		if key != "" && h.guard != nil {
			if err := h.guard.Claim(ctx, actorID+":"+key); err != nil {
				return nil, handleError(h.log, err)
			}
		}
		lines := make([]domain.RequestLine, 0, len(input.Body.Lines))
		for _, l := range input.Body.Lines {
			lines = append(lines, domain.RequestLine{ItemID: l.ItemID, Quantity: l.Quantity})
		}
		req, err := h.engine.CreateRequest(ctx, engine.CreateRequestOptions{
			RequesterID: actorID,
			ManagerID:   input.Body.ManagerID,
			Lines:       lines,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Comment:     input.Body.Comment,
		})
		if err != nil {
			if key != "" && h.guard != nil {
				if rerr := h.guard.Release(ctx, actorID+":"+key); rerr != nil {
					h.log.Warn("release idempotency key", zap.String("key", key), zap.Error(rerr))
				}
			}
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-requests",
		Method:      http.MethodGet,
		Path:        "/requests/mine",
		Summary:     "List the caller's requests",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RequestList `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.engine.ListMyRequests(ctx, actorID)
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body RequestList `json:"body"`
		}{Body: requestList(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get a request with its lines and approval log",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requestPath) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := h.engine.GetRequest(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(req)}, nil
	})

	h.registerDecision(api, "manager-decision", "Record the manager decision", h.engine.DecideManagerApproval)
	h.registerDecision(api, "pic-decision", "Record the PIC decision", h.engine.DecidePicApproval)

	huma.Register(api, huma.Operation{
		OperationID: "return-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/return",
		Summary:     "Return the items of an approved request",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *requestPath) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := h.engine.ReturnItems(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(req)}, nil
	})
}

type decideFunc func(ctx context.Context, requestID, actorID string, decision domain.Decision, comment string) (domain.Request, error)

func (h handlers) registerDecision(api huma.API, name, summary string, decide decideFunc) {
	huma.Register(api, huma.Operation{
		OperationID: name,
		Method:      http.MethodPost,
		Path:        "/requests/{id}/" + name,
		Summary:     summary,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string       `path:"id"`
		Body DecisionBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req, err := decide(ctx, input.ID, actorID, domain.Decision(input.Body.Decision), input.Body.Comment)
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(req)}, nil
	})
}

func (h handlers) registerApprovals(api huma.API) {
	queues := []struct {
		id, path, summary string
		list              func(ctx context.Context, callerID string) ([]domain.Request, error)
	}{
		{"pending-manager-approvals", "/approvals/pending/manager", "Requests waiting for the caller's manager decision", h.engine.ManagerQueue},
		{"pending-pic-approvals", "/approvals/pending/pic", "Requests waiting for a PIC decision", h.engine.PicQueue},
	}
	for _, q := range queues {
		list := q.list
		huma.Register(api, huma.Operation{
			OperationID: q.id,
			Method:      http.MethodGet,
			Path:        q.path,
			Summary:     q.summary,
			Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
		}, func(ctx context.Context, _ *struct{}) (*struct {
			Body RequestList `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			items, err := list(ctx, actorID)
			if err != nil {
				return nil, handleError(h.log, err)
			}
			return &struct {
				Body RequestList `json:"body"`
			}{Body: requestList(items)}, nil
		})
	}
}

func (h handlers) registerItems(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
		Summary:     "Get an item and its availability",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ItemResponse `json:"body"`
	}, error) {
		it, err := h.engine.GetItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body ItemResponse `json:"body"`
		}{Body: itemResponse(it)}, nil
	})
}

func (h handlers) registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		res := MeResponse{ActorID: principal.ActorID, Source: principal.Source, Roles: []string{}}
		u, err := h.engine.GetUser(ctx, principal.ActorID)
		switch {
		case err == nil:
			res.Name, res.Grade, res.Roles = u.Name, u.Grade, nonNilSlice(u.Roles)
		case !errors.Is(err, engine.ErrNotFound):
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: res}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Change feed (admin only)",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"request,item,user,api_key"`
		EntityID   string `query:"entity_id"`
		After      string `query:"after"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var after int64
		if input.After != "" {
			parsed, err := strconv.ParseInt(input.After, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"after": input.After})
			}
			after = parsed
		}
		limit := normalizeLimit(input.Limit)
		items, err := h.engine.ListEvents(ctx, actorID, repo.EventFilters{
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			AfterID:    after,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(h.log, err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func (h handlers) registerDevAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for an existing user",
		Security:    anonymous,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if _, err := h.engine.GetUser(ctx, actor); err != nil {
			return nil, handleError(h.log, err)
		}
		token, err := signDevToken(h.auth.JWTSecret, actor, time.Now())
		if err != nil {
			return nil, handleError(h.log, err)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
