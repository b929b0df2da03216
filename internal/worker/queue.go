package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashnotes-backend/internal/models"
)

const FlashcardQueue = "queue:flashcard-generation"

// UserChannel is the pub/sub channel carrying a user's job events.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// RedisQueue pushes jobs onto the Redis list the pool pops from.
type RedisQueue struct {
	client *redis.Client
	name   string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, name: FlashcardQueue}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.name, string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// RedisPublisher fans job events out to the websocket hub through pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, UserChannel(userID), string(data)).Err()
}
