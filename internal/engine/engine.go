package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetline/internal/config"
	"assetline/internal/domain"
	"assetline/internal/engine/auth"
	"assetline/internal/events"
	"assetline/internal/repo"
)

const dateLayout = "2006-01-02"

// Engine drives borrow requests through their lifecycle. It is a value type
// and safe for concurrent use; all state lives in DB.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log *zap.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{Now: time.Now},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e Engine) events() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) policy() auth.Policy {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return auth.Policy{
		ManagerRole:     cfg.Workflow.ManagerRole,
		ManagerGrade:    cfg.Workflow.ManagerGrade,
		PICRole:         cfg.Workflow.PICRole,
		AdminRole:       cfg.Workflow.AdminRole,
		ElevatedReaders: cfg.Workflow.ElevatedReaders,
	}
}

// loadActor resolves the authenticated principal. An unknown actor holds no
// roles, so it is rejected as forbidden.
func (e Engine) loadActor(ctx context.Context, q repo.Querier, actorID string) (domain.User, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.User{}, forbidden(auth.ForbiddenError{Reason: "actor required"})
	}
	u, err := e.Repo.GetUser(ctx, q, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, forbidden(auth.ForbiddenError{ActorID: actorID, Reason: "unknown actor"})
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load actor: %w", err)
	}
	return u, nil
}

func (e Engine) loadRequest(ctx context.Context, q repo.Querier, requestID string) (domain.Request, error) {
	req, err := e.Repo.GetRequest(ctx, q, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return req, notFound("request", requestID)
	}
	if err != nil {
		return req, fmt.Errorf("load request: %w", err)
	}
	return req, nil
}

// CreateRequestOptions are parameters for creating a borrow request.
type CreateRequestOptions struct {
	ID          string
	RequesterID string
	ManagerID   string
	Lines       []domain.RequestLine
	StartDate   string
	EndDate     string
	Comment     string
}

func (o *CreateRequestOptions) validate() error {
	if strings.TrimSpace(o.RequesterID) == "" {
		return badRequest("requester_id", "requester is required")
	}
	if strings.TrimSpace(o.ManagerID) == "" {
		return badRequest("manager_id", "manager is required")
	}
	if len(o.Lines) == 0 {
		return badRequest("lines", "at least one line item is required")
	}
	o.Lines = append([]domain.RequestLine(nil), o.Lines...)
	seen := make(map[string]struct{}, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		l.ItemID = strings.TrimSpace(l.ItemID)
		if l.ItemID == "" {
			return badRequest("lines", "line %d has no item id", i)
		}
		if l.Quantity == 0 {
			l.Quantity = 1
		}
		if l.Quantity < 1 {
			return badRequest("lines", "line %d quantity must be at least 1", i)
		}
		if _, dup := seen[l.ItemID]; dup {
			return badRequest("lines", "item %s listed more than once", l.ItemID)
		}
		seen[l.ItemID] = struct{}{}
	}
	start, err := time.Parse(dateLayout, o.StartDate)
	if err != nil {
		return badRequest("start_date", "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, o.EndDate)
	if err != nil {
		return badRequest("end_date", "end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return badRequest("end_date", "end_date %s is before start_date %s", o.EndDate, o.StartDate)
	}
	return nil
}

// CreateRequest stores a new request in Waiting_Manager_Approval. Every line
// item must exist and be available; nothing is persisted otherwise.
func (e Engine) CreateRequest(ctx context.Context, opts CreateRequestOptions) (domain.Request, error) {
	if err := opts.validate(); err != nil {
		return domain.Request{}, err
	}
	requester, err := e.Repo.GetUser(ctx, nil, opts.RequesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Request{}, notFound("user", opts.RequesterID)
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("load requester: %w", err)
	}
	manager, err := e.Repo.GetUser(ctx, nil, opts.ManagerID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Request{}, notFound("manager", opts.ManagerID)
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("load manager: %w", err)
	}
	if !e.policy().QualifiesAsManager(manager) {
		return domain.Request{}, badRequest("manager_id", "user %s cannot approve as manager", manager.ID)
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	req := domain.Request{
		ID:          id,
		RequesterID: requester.ID,
		ManagerID:   manager.ID,
		Lines:       opts.Lines,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Comment:     opts.Comment,
		Status:      domain.StatusWaitingManagerApproval,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	// Availability is read under the write lock so a concurrent PIC approval
	// cannot slip between the check and the insert.
	avail, err := e.Repo.ItemsAvailability(ctx, tx, req.ItemIDs())
	if err != nil {
		return domain.Request{}, fmt.Errorf("read item availability: %w", err)
	}
	for _, l := range req.Lines {
		ok, exists := avail[l.ItemID]
		if !exists {
			return domain.Request{}, notFound("item", l.ItemID)
		}
		if !ok {
			return domain.Request{}, &Error{Kind: KindBadRequest, Field: "lines", ID: l.ItemID, Message: fmt.Sprintf("item %s is not available", l.ItemID)}
		}
	}
	if err := e.Repo.InsertRequest(ctx, tx, req); err != nil {
		return domain.Request{}, err
	}
	if err := e.events().Append(ctx, tx, events.RequestCreated, "request", req.ID, requester.ID, events.Payload{
		"status":     req.Status,
		"manager_id": req.ManagerID,
		"items":      req.ItemIDs(),
	}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	e.logger().Info("request created",
		zap.String("request_id", req.ID),
		zap.String("requester_id", req.RequesterID),
		zap.String("manager_id", req.ManagerID),
		zap.Int("lines", len(req.Lines)))
	return e.loadRequest(ctx, nil, req.ID)
}

// DecideManagerApproval records the designated manager's decision.
func (e Engine) DecideManagerApproval(ctx context.Context, requestID, actorID string, decision domain.Decision, comment string) (domain.Request, error) {
	return e.decide(ctx, domain.ApproverManager, requestID, actorID, decision, comment)
}

// DecidePicApproval records a PIC decision. Approval marks every line item
// unavailable in the same transaction as the status change.
func (e Engine) DecidePicApproval(ctx context.Context, requestID, actorID string, decision domain.Decision, comment string) (domain.Request, error) {
	return e.decide(ctx, domain.ApproverPIC, requestID, actorID, decision, comment)
}

func (e Engine) decide(ctx context.Context, stage domain.ApproverRole, requestID, actorID string, decision domain.Decision, comment string) (domain.Request, error) {
	log := e.logger().With(
		zap.String("request_id", requestID),
		zap.String("actor_id", actorID),
		zap.String("stage", string(stage)),
		zap.String("decision", string(decision)))
	if !decision.Valid() {
		return domain.Request{}, badRequest("decision", "unknown decision %q", decision)
	}
	actor, err := e.loadActor(ctx, nil, actorID)
	if err != nil {
		return domain.Request{}, err
	}
	req, err := e.loadRequest(ctx, nil, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	policy := e.policy()
	switch stage {
	case domain.ApproverManager:
		err = policy.CanDecideManager(actor, req)
	case domain.ApproverPIC:
		err = policy.CanDecidePIC(actor)
	}
	if err != nil {
		log.Debug("decision rejected", zap.Error(err))
		return domain.Request{}, forbidden(err)
	}
	action := fmt.Sprintf("record %s decision %s", stage, decision)
	t, ok := lookupDecision(stage, req.Status, decision)
	if !ok {
		log.Debug("decision rejected", zap.String("status", string(req.Status)))
		return domain.Request{}, invalidState(req.ID, req.Status, action)
	}

	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.compareAndSet(ctx, tx, req.ID, req.Status, t.to, now, "", action); err != nil {
		log.Debug("decision rejected", zap.Error(err))
		return domain.Request{}, err
	}
	entry, err := e.Repo.AppendApproval(ctx, tx, domain.ApprovalEntry{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		ApproverID:   actor.ID,
		ApproverRole: stage,
		Decision:     decision,
		Comment:      comment,
		DecidedAt:    now,
	})
	if err != nil {
		return domain.Request{}, err
	}
	if err := e.applyLedger(ctx, tx, req, t.ledger, now); err != nil {
		log.Debug("decision rejected", zap.Error(err))
		return domain.Request{}, err
	}
	evtType := events.RequestManagerDecided
	if stage == domain.ApproverPIC {
		evtType = events.RequestPicDecided
	}
	if err := e.events().Append(ctx, tx, evtType, "request", req.ID, actor.ID, events.Payload{
		"from":     req.Status,
		"to":       t.to,
		"decision": decision,
		"seq":      entry.Seq,
	}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	log.Info("request transitioned", zap.String("from", string(req.Status)), zap.String("to", string(t.to)))
	return e.loadRequest(ctx, nil, req.ID)
}

// ReturnItems closes an Approved or Success request as Returned and marks every
// line item available again. No approval entry is recorded.
func (e Engine) ReturnItems(ctx context.Context, requestID, actorID string) (domain.Request, error) {
	log := e.logger().With(zap.String("request_id", requestID), zap.String("actor_id", actorID))
	actor, err := e.loadActor(ctx, nil, actorID)
	if err != nil {
		return domain.Request{}, err
	}
	req, err := e.loadRequest(ctx, nil, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	if err := e.policy().CanReturn(actor, req); err != nil {
		log.Debug("return rejected", zap.Error(err))
		return domain.Request{}, forbidden(err)
	}
	t, ok := lookupReturn(req.Status)
	if !ok {
		log.Debug("return rejected", zap.String("status", string(req.Status)))
		return domain.Request{}, invalidState(req.ID, req.Status, "return items")
	}

	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.compareAndSet(ctx, tx, req.ID, req.Status, t.to, now, now, "return items"); err != nil {
		log.Debug("return rejected", zap.Error(err))
		return domain.Request{}, err
	}
	if err := e.applyLedger(ctx, tx, req, t.ledger, now); err != nil {
		log.Debug("return rejected", zap.Error(err))
		return domain.Request{}, err
	}
	if err := e.events().Append(ctx, tx, events.RequestReturned, "request", req.ID, actor.ID, events.Payload{
		"from":  req.Status,
		"to":    t.to,
		"items": req.ItemIDs(),
	}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	log.Info("request transitioned", zap.String("from", string(req.Status)), zap.String("to", string(t.to)))
	return e.loadRequest(ctx, nil, req.ID)
}

// compareAndSet writes the new status only if the stored one is still from.
// A lost race re-reads the committed status for the error.
func (e Engine) compareAndSet(ctx context.Context, tx *sql.Tx, requestID string, from, to domain.Status, now, returnedAt, action string) error {
	err := e.Repo.CompareAndSetStatus(ctx, tx, requestID, from, to, now, returnedAt)
	if !errors.Is(err, repo.ErrStaleStatus) {
		return err
	}
	current, rerr := e.Repo.RequestStatus(ctx, tx, requestID)
	if rerr != nil {
		return fmt.Errorf("re-read request status: %w", rerr)
	}
	return invalidState(requestID, current, action)
}

func (e Engine) applyLedger(ctx context.Context, tx *sql.Tx, req domain.Request, effect ledgerEffect, now string) error {
	switch effect {
	case ledgerReserve:
		return ledgerError(req.ID, e.Repo.SetItemsAvailability(ctx, tx, req.ItemIDs(), false, now))
	case ledgerRelease:
		return ledgerError(req.ID, e.Repo.SetItemsAvailability(ctx, tx, req.ItemIDs(), true, now))
	}
	return nil
}
