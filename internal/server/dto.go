package server

import (
	"encoding/json"

	"assetline/internal/domain"
)

// Request payloads

type LineInput struct {
	ItemID   string `json:"item_id" minLength:"1"`
	Quantity int    `json:"quantity,omitempty" minimum:"1"`
}

type CreateRequestBody struct {
	ManagerID string      `json:"manager_id" minLength:"1"`
	Lines     []LineInput `json:"lines" minItems:"1"`
	StartDate string      `json:"start_date" format:"date" example:"2024-01-02"`
	EndDate   string      `json:"end_date" format:"date" example:"2024-01-05"`
	Comment   string      `json:"comment,omitempty"`
}

type DecisionBody struct {
	Decision string `json:"decision" enum:"Approved,Reject,Revise,Canceled"`
	Comment  string `json:"comment,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type LineResponse struct {
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
	Quantity    int    `json:"quantity"`
	IsAvailable bool   `json:"is_available"`
}

type ApprovalResponse struct {
	Seq          int    `json:"seq"`
	ApproverID   string `json:"approver_id"`
	ApproverRole string `json:"approver_role" enum:"manager,pic"`
	Decision     string `json:"decision"`
	Comment      string `json:"comment,omitempty"`
	DecidedAt    string `json:"decided_at" format:"date-time"`
}

type RequestResponse struct {
	ID          string             `json:"id"`
	RequesterID string             `json:"requester_id"`
	ManagerID   string             `json:"manager_id"`
	Status      string             `json:"status"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	Comment     string             `json:"comment,omitempty"`
	Lines       []LineResponse     `json:"lines"`
	Approvals   []ApprovalResponse `json:"approvals"`
	CreatedAt   string             `json:"created_at" format:"date-time"`
	UpdatedAt   string             `json:"updated_at" format:"date-time"`
	ReturnedAt  *string            `json:"returned_at,omitempty" format:"date-time"`
}

type RequestList struct {
	Items []RequestResponse `json:"items"`
}

type ItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CategoryID  string `json:"category_id,omitempty"`
	IsAvailable bool   `json:"is_available"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type MeResponse struct {
	ActorID string   `json:"actor_id"`
	Name    string   `json:"name"`
	Grade   string   `json:"grade,omitempty"`
	Roles   []string `json:"roles"`
	Source  string   `json:"source"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func requestResponse(r domain.Request) RequestResponse {
	res := RequestResponse{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		ManagerID:   r.ManagerID,
		Status:      string(r.Status),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Comment:     r.Comment,
		Lines:       make([]LineResponse, 0, len(r.Lines)),
		Approvals:   make([]ApprovalResponse, 0, len(r.Approvals)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ReturnedAt:  r.ReturnedAt,
	}
	for _, l := range r.Lines {
		res.Lines = append(res.Lines, LineResponse{
			ItemID:      l.ItemID,
			ItemName:    l.ItemName,
			Quantity:    l.Quantity,
			IsAvailable: l.IsAvailable,
		})
	}
	for _, a := range r.Approvals {
		res.Approvals = append(res.Approvals, ApprovalResponse{
			Seq:          a.Seq,
			ApproverID:   a.ApproverID,
			ApproverRole: string(a.ApproverRole),
			Decision:     string(a.Decision),
			Comment:      a.Comment,
			DecidedAt:    a.DecidedAt,
		})
	}
	return res
}

func requestList(items []domain.Request) RequestList {
	out := RequestList{Items: make([]RequestResponse, 0, len(items))}
	for _, r := range items {
		out.Items = append(out.Items, requestResponse(r))
	}
	return out
}

func itemResponse(it domain.Item) ItemResponse {
	return ItemResponse{
		ID:          it.ID,
		Name:        it.Name,
		CategoryID:  it.CategoryID,
		IsAvailable: it.IsAvailable,
		UpdatedAt:   it.UpdatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
