package auth

import (
	"fmt"

	"assetline/internal/domain"
)

// ForbiddenError indicates the actor lacks the capability for an operation.
type ForbiddenError struct {
	ActorID string
	Role    string
	Reason  string
}

func (e ForbiddenError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("actor %s: %s", e.ActorID, e.Reason)
	case e.Role != "":
		return fmt.Sprintf("actor %s requires role %s", e.ActorID, e.Role)
	default:
		return fmt.Sprintf("actor %s is not allowed", e.ActorID)
	}
}

// ActorHasRole reports whether u holds role.
func ActorHasRole(u domain.User, role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ActorHasAnyRole reports whether u holds at least one of roles.
func ActorHasAnyRole(u domain.User, roles []string) bool {
	for _, r := range roles {
		if ActorHasRole(u, r) {
			return true
		}
	}
	return false
}

// Policy holds the role names and grade the workflow checks against.
type Policy struct {
	ManagerRole     string
	ManagerGrade    string
	PICRole         string
	AdminRole       string
	ElevatedReaders []string
}

// QualifiesAsManager reports whether u may be designated as a request's
// manager: manager role plus the configured grade.
func (p Policy) QualifiesAsManager(u domain.User) bool {
	return ActorHasRole(u, p.ManagerRole) && u.Grade == p.ManagerGrade
}

// CanDecideManager checks the manager stage: the actor must be the designated
// manager and still qualify.
func (p Policy) CanDecideManager(actor domain.User, req domain.Request) error {
	if actor.ID != req.ManagerID {
		return ForbiddenError{ActorID: actor.ID, Reason: "not the designated manager of request " + req.ID}
	}
	if !ActorHasRole(actor, p.ManagerRole) {
		return ForbiddenError{ActorID: actor.ID, Role: p.ManagerRole}
	}
	if actor.Grade != p.ManagerGrade {
		return ForbiddenError{ActorID: actor.ID, Reason: fmt.Sprintf("manager grade %s required", p.ManagerGrade)}
	}
	return nil
}

func (p Policy) CanDecidePIC(actor domain.User) error {
	if !ActorHasRole(actor, p.PICRole) {
		return ForbiddenError{ActorID: actor.ID, Role: p.PICRole}
	}
	return nil
}

// CanReturn allows the requester or an admin.
func (p Policy) CanReturn(actor domain.User, req domain.Request) error {
	if actor.ID == req.RequesterID || ActorHasRole(actor, p.AdminRole) {
		return nil
	}
	return ForbiddenError{ActorID: actor.ID, Reason: "only the requester or an admin can return request " + req.ID}
}

// CanRead allows the requester, the designated manager and elevated readers.
func (p Policy) CanRead(actor domain.User, req domain.Request) error {
	if actor.ID == req.RequesterID || actor.ID == req.ManagerID || ActorHasAnyRole(actor, p.ElevatedReaders) {
		return nil
	}
	return ForbiddenError{ActorID: actor.ID, Reason: "cannot read request " + req.ID}
}
