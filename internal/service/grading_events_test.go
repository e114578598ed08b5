package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestGradingEventPublisherFansOutToRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pubsub := redisClient.Subscribe(ctx, "gema:grading")
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewGradingEventPublisher(redisClient, "gema", nil, testLogger())
	total := 9.5
	session := models.GradingSession{ID: 3, SubmissionID: 7, ExamID: 1, Version: 2, Status: models.GradingSessionStatusCompleted, TotalScore: &total}

	publisher.Publish(middleware.ContextWithCorrelation(ctx, "corr-1"), EventSessionCompleted, session, reviewer)

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event GradingEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, EventSessionCompleted, event.Type)
	require.Equal(t, uint(3), event.SessionID)
	require.Equal(t, 2, event.Version)
	require.Equal(t, "COMPLETED", event.Status)
	require.Equal(t, 9.5, *event.TotalScore)
	require.Equal(t, reviewer.ID, event.ActorID)
	require.Equal(t, "corr-1", event.CorrelationID)
	require.NotEmpty(t, event.ID)
}

func TestGradingEventPublisherWithoutBrokers(t *testing.T) {
	publisher := NewGradingEventPublisher(nil, "", nil, testLogger())
	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), EventSessionStarted, models.GradingSession{ID: 1}, reviewer)
	})
}

func TestGradingEventPublisherIgnoresRedisFailure(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()
	server.Close()

	publisher := NewGradingEventPublisher(redisClient, "gema", nil, testLogger())
	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), EventSessionRegraded, models.GradingSession{ID: 2}, reviewer)
	})
}
