package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
)

// Decision reasons. Denials for missing and foreign targets share
// DenyNotOwner so callers cannot probe for existence.
const (
	AllowManagerOwnsTurn     = "manager_owns_turn"
	AllowManagerOwnsProperty = "manager_owns_property"
	AllowCleanerOwnsTurn     = "cleaner_owns_turn"
	AllowCleanerAssigned     = "cleaner_assigned"
	DenyNotOwner             = "not_owner"
	DenyUnknownPath          = "unknown_path"
	DenyUnknownRole          = "unknown_role"
)

const (
	turnPathPrefix = "turns"
	shotPathPrefix = "shots"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// GuardService decides whether an actor may touch a turn, a property or a
// stored object. Errors are reserved for datastore failures.
type GuardService interface {
	AuthorizeTurn(ctx context.Context, actor models.Actor, turnID uuid.UUID) (Decision, error)
	CheckTurn(ctx context.Context, actor models.Actor, turn *models.Turn) (Decision, error)
	AuthorizeProperty(ctx context.Context, actor models.Actor, propertyID uuid.UUID) (Decision, error)
	AuthorizePath(ctx context.Context, actor models.Actor, path string) (Decision, error)
}

type guardService struct {
	turns       repositories.TurnRepository
	properties  repositories.PropertyRepository
	assignments repositories.AssignmentRepository
}

func NewGuardService(
	turns repositories.TurnRepository,
	properties repositories.PropertyRepository,
	assignments repositories.AssignmentRepository,
) GuardService {
	return &guardService{turns: turns, properties: properties, assignments: assignments}
}

func (g *guardService) AuthorizeTurn(ctx context.Context, actor models.Actor, turnID uuid.UUID) (Decision, error) {
	turn, err := g.turns.GetByID(ctx, turnID)
	if err != nil {
		return deny(DenyNotOwner), err
	}
	return g.CheckTurn(ctx, actor, turn)
}

func (g *guardService) CheckTurn(ctx context.Context, actor models.Actor, turn *models.Turn) (Decision, error) {
	if turn == nil {
		return deny(DenyNotOwner), nil
	}
	switch actor.Role {
	case models.RoleManager:
		if turn.ManagerID != nil {
			if *turn.ManagerID == actor.SubjectID {
				return allow(AllowManagerOwnsTurn), nil
			}
			return deny(DenyNotOwner), nil
		}
		return g.managerOwnsProperty(ctx, actor, turn.PropertyID)
	case models.RoleCleaner:
		if turn.CleanerID == actor.SubjectID {
			return allow(AllowCleanerOwnsTurn), nil
		}
		return g.cleanerAssigned(ctx, actor, turn.PropertyID)
	}
	return deny(DenyUnknownRole), nil
}

func (g *guardService) AuthorizeProperty(ctx context.Context, actor models.Actor, propertyID uuid.UUID) (Decision, error) {
	switch actor.Role {
	case models.RoleManager:
		return g.managerOwnsProperty(ctx, actor, propertyID)
	case models.RoleCleaner:
		return g.cleanerAssigned(ctx, actor, propertyID)
	}
	return deny(DenyUnknownRole), nil
}

// AuthorizePath maps an object key back to its owner:
//
//	turns/{turnID}/...  -> the turn rule
//	shots/{shotID}/...  -> shot -> template -> property rule
//
// Every other shape is denied.
func (g *guardService) AuthorizePath(ctx context.Context, actor models.Actor, path string) (Decision, error) {
	segments, ok := splitObjectPath(path)
	if !ok {
		return deny(DenyUnknownPath), nil
	}
	id, err := uuid.Parse(segments[1])
	if err != nil {
		return deny(DenyUnknownPath), nil
	}

	switch segments[0] {
	case turnPathPrefix:
		return g.AuthorizeTurn(ctx, actor, id)
	case shotPathPrefix:
		shot, err := g.properties.GetTemplateShot(ctx, id)
		if err != nil {
			return deny(DenyNotOwner), err
		}
		if shot == nil {
			return deny(DenyNotOwner), nil
		}
		return g.AuthorizeProperty(ctx, actor, shot.PropertyID)
	}
	return deny(DenyUnknownPath), nil
}

func (g *guardService) managerOwnsProperty(ctx context.Context, actor models.Actor, propertyID uuid.UUID) (Decision, error) {
	prop, err := g.properties.GetByID(ctx, propertyID)
	if err != nil {
		return deny(DenyNotOwner), err
	}
	if prop != nil && prop.ManagerID != nil && *prop.ManagerID == actor.SubjectID {
		return allow(AllowManagerOwnsProperty), nil
	}
	return deny(DenyNotOwner), nil
}

func (g *guardService) cleanerAssigned(ctx context.Context, actor models.Actor, propertyID uuid.UUID) (Decision, error) {
	ok, err := g.assignments.Exists(ctx, propertyID, actor.SubjectID)
	if err != nil {
		return deny(DenyNotOwner), err
	}
	if ok {
		return allow(AllowCleanerAssigned), nil
	}
	return deny(DenyNotOwner), nil
}

// splitObjectPath accepts "prefix/uuid/rest..." with no empty, "." or ".."
// segments.
func splitObjectPath(path string) ([]string, bool) {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, `\`) {
		return nil, false
	}
	segments := strings.Split(path, "/")
	if len(segments) < 3 {
		return nil, false
	}
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return nil, false
		}
	}
	return segments, true
}
