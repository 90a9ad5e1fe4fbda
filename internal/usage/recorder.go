package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-service/internal/model"
)

// Domain errors returned by the Recorder.
var (
	ErrSessionNotFound = errors.New("usage session not found")
	ErrNotSessionOwner = errors.New("session belongs to another user")
	ErrAgentRequired   = errors.New("agent id is required")
)

// Store is the persistence surface the recorder needs: append-only writes
// plus a partial field update to close a session.
type Store interface {
	Append(ctx context.Context, session *model.UsageSession) error
	Get(ctx context.Context, id string) (*model.UsageSession, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.UsageSession, error)
}

// Recorder opens and closes usage sessions and serves the aggregated
// per-user summary.
type Recorder struct {
	store Store
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

// NewRecorder creates a recorder that buckets reports in loc.
func NewRecorder(store Store, loc *time.Location, log *zap.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{store: store, loc: loc, now: time.Now, log: log}
}

// Start appends a new open session for the user and returns it.
func (r *Recorder) Start(ctx context.Context, userID, agentID, agentName string) (*model.UsageSession, error) {
	if agentID == "" {
		return nil, ErrAgentRequired
	}

	session := &model.UsageSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		AgentID:   agentID,
		AgentName: agentName,
		StartedAt: r.now().UTC(),
	}
	if err := r.store.Append(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to append usage session: %w", err)
	}

	r.log.Info("Usage session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("agent_id", agentID))
	return session, nil
}

// End closes the session, deriving the duration from the recorded start
// time. Ending an already-ended session is a no-op that returns the stored
// record unchanged.
func (r *Recorder) End(ctx context.Context, userID, sessionID string) (*model.UsageSession, error) {
	session, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	if session.EndedAt != nil {
		return session, nil
	}

	endedAt := r.now().UTC()
	duration := int64(endedAt.Sub(session.StartedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}

	if _, err := r.store.UpdateFields(ctx, sessionID, map[string]interface{}{
		"ended_at":         endedAt,
		"duration_seconds": duration,
	}); err != nil {
		return nil, fmt.Errorf("failed to close usage session: %w", err)
	}

	session.EndedAt = &endedAt
	session.DurationSeconds = &duration

	r.log.Info("Usage session ended",
		zap.String("session_id", session.ID),
		zap.Int64("duration_seconds", duration))
	return session, nil
}

// Summary aggregates the user's completed sessions over the last windowDays.
func (r *Recorder) Summary(ctx context.Context, userID string, windowDays int) (Summary, error) {
	records, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list usage sessions: %w", err)
	}
	return Aggregate(records, windowDays, r.loc), nil
}
