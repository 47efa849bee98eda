package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"washouse/backend/internal/directory"
	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the transactional engine: it owns the order lifecycle, the
// sales and expense ledgers, shift reconciliation and the branch-scoped
// inventory. All mutations run through here so every one of them leaves
// an activity-log trail.
type Service struct {
	repo            store.Repository
	directory       *directory.Engine
	defaultBranchID string
}

func New(repo store.Repository, dir *directory.Engine, defaultBranchID string) *Service {
	if defaultBranchID == "" {
		defaultBranchID = "main"
	}

	return &Service{
		repo:            repo,
		directory:       dir,
		defaultBranchID: defaultBranchID,
	}
}

// logActivity appends an audit entry for a mutating operation. Failures
// are logged and swallowed: the audit trail must never abort the
// operation it describes.
func (s *Service) logActivity(ctx context.Context, branchID string, action string, details string) {
	user := "Sistema"
	if actor, ok := ActorFromContext(ctx); ok {
		user = actor.Username
	}
	if branchID == "" {
		branchID = s.defaultBranchID
	}

	err := s.repo.AppendActivity(ctx, domain.ActivityLog{
		ID:        xid.New("LOG"),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
		User:      user,
		BranchID:  branchID,
	})
	if err != nil {
		log.Printf("[service] WARN: failed to append activity %s: %v", action, err)
	}
}

func (s *Service) ListActivity(ctx context.Context, branchID string, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListActivity(ctx, branchID, limit)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}
