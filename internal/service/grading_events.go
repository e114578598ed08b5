package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// Grading lifecycle event types.
const (
	EventSessionStarted   = "grading.session.started"
	EventSessionCompleted = "grading.session.completed"
	EventSessionRegraded  = "grading.session.regraded"
)

// GradingEvent is the payload fanned out to brokers when a session changes state.
type GradingEvent struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Source            string    `json:"source"`
	SessionID         uint      `json:"session_id"`
	SubmissionID      uint      `json:"submission_id"`
	ExamID            uint      `json:"exam_id"`
	Version           int       `json:"version"`
	Status            string    `json:"status"`
	TotalScore        *float64  `json:"total_score,omitempty"`
	PreviousSessionID *uint     `json:"previous_session_id,omitempty"`
	ActorID           uint      `json:"actor_id"`
	CorrelationID     string    `json:"correlation_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// GradingEventPublisher announces session lifecycle changes. Publishing is best
// effort and never fails the grading operation that triggered it.
type GradingEventPublisher interface {
	Publish(ctx context.Context, eventType string, session models.GradingSession, actor ActivityActor)
}

type gradingEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
	now          func() time.Time
}

// NewGradingEventPublisher builds a publisher over whichever brokers are configured.
// Both clients may be nil.
func NewGradingEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) GradingEventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grading"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grading"
	}

	return &gradingEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "grading_events").Logger(),
		nodeID:       uuid.NewString(),
		now:          time.Now,
	}
}

func (p *gradingEventPublisher) Publish(ctx context.Context, eventType string, session models.GradingSession, actor ActivityActor) {
	event := GradingEvent{
		ID:                uuid.NewString(),
		Type:              eventType,
		Source:            p.nodeID,
		SessionID:         session.ID,
		SubmissionID:      session.SubmissionID,
		ExamID:            session.ExamID,
		Version:           session.Version,
		Status:            string(session.Status),
		TotalScore:        session.TotalScore,
		PreviousSessionID: session.PreviousSessionID,
		ActorID:           actor.ID,
		CorrelationID:     middleware.CorrelationIDFromContext(ctx),
		OccurredAt:        p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", eventType).Msg("failed to encode grading event")
		return
	}

	published := false
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			p.logger.Warn().Err(err).Str("type", eventType).Uint("session_id", session.ID).Msg("failed to publish grading event to redis")
		} else {
			published = true
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("type", eventType).Uint("session_id", session.ID).Msg("failed to publish grading event to nats")
		} else {
			published = true
		}
	}

	if published {
		observability.GradingEventsPublished().WithLabelValues(eventType).Inc()
	}
}

type noopEventPublisher struct{}

func (noopEventPublisher) Publish(context.Context, string, models.GradingSession, ActivityActor) {}
