package engine

import "assetline/internal/domain"

// ledgerEffect is the availability write a transition performs on every line item.
type ledgerEffect int

const (
	ledgerNone ledgerEffect = iota
	// ledgerReserve marks items unavailable.
	ledgerReserve
	// ledgerRelease marks items available again.
	ledgerRelease
)

type transitionKey struct {
	stage    domain.ApproverRole
	from     domain.Status
	decision domain.Decision
}

type transition struct {
	to     domain.Status
	ledger ledgerEffect
}

// decisionTable lists every legal approval transition. Pairs missing from the
// table are rejected as invalid_state.
var decisionTable = map[transitionKey]transition{
	{domain.ApproverManager, domain.StatusWaitingManagerApproval, domain.DecisionApproved}: {to: domain.StatusWaitingPicApproval},
	{domain.ApproverManager, domain.StatusWaitingManagerApproval, domain.DecisionReject}:   {to: domain.StatusReject},
	{domain.ApproverManager, domain.StatusWaitingManagerApproval, domain.DecisionRevise}:   {to: domain.StatusWaitingManagerApproval},
	{domain.ApproverManager, domain.StatusWaitingManagerApproval, domain.DecisionCanceled}: {to: domain.StatusCanceled},

	{domain.ApproverPIC, domain.StatusWaitingPicApproval, domain.DecisionApproved}: {to: domain.StatusApproved, ledger: ledgerReserve},
	{domain.ApproverPIC, domain.StatusWaitingPicApproval, domain.DecisionReject}:   {to: domain.StatusReject},
	{domain.ApproverPIC, domain.StatusWaitingPicApproval, domain.DecisionRevise}:   {to: domain.StatusWaitingManagerApproval},
	{domain.ApproverPIC, domain.StatusWaitingPicApproval, domain.DecisionCanceled}: {to: domain.StatusCanceled},
}

// returnTable lists the statuses a return may leave from.
var returnTable = map[domain.Status]transition{
	domain.StatusApproved: {to: domain.StatusReturned, ledger: ledgerRelease},
	domain.StatusSuccess:  {to: domain.StatusReturned, ledger: ledgerRelease},
}

func lookupDecision(stage domain.ApproverRole, from domain.Status, decision domain.Decision) (transition, bool) {
	t, ok := decisionTable[transitionKey{stage: stage, from: from, decision: decision}]
	return t, ok
}

func lookupReturn(from domain.Status) (transition, bool) {
	t, ok := returnTable[from]
	return t, ok
}
