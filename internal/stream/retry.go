package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff gives up immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type RetryHandler struct {
	client        redis.Cmdable
	deadLetterKey string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewRetryHandler(client redis.Cmdable, deadLetterKey string) *RetryHandler {
	return &RetryHandler{
		client:        client,
		deadLetterKey: deadLetterKey,
		maxRetries:    3,
		baseDelay:     500 * time.Millisecond,
		maxDelay:      10 * time.Second,
	}
}

// RetryWithBackoff runs fn until it succeeds, fails permanently or runs out
// of attempts. Failed messages are moved to the dead letter stream.
func (h *RetryHandler) RetryWithBackoff(ctx context.Context, fn func() error, messageID string, fields map[string]interface{}) error {
	var err error
	delay := h.baseDelay

	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, h.maxDelay)
		}

		err = fn()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			break
		}

		log.Warn().
			Err(err).
			Str("message_id", messageID).
			Int("attempt", attempt+1).
			Msg("Message processing failed, retrying")
	}

	if dlqErr := h.SendToDeadLetter(ctx, messageID, fields, err); dlqErr != nil {
		log.Error().Err(dlqErr).Str("message_id", messageID).Msg("Failed to send message to dead letter queue")
	}

	return err
}

// SendToDeadLetter appends the message and its failure to the dead letter stream
func (h *RetryHandler) SendToDeadLetter(ctx context.Context, messageID string, fields map[string]interface{}, cause error) error {
	values := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		values[k] = v
	}
	values["original_id"] = messageID
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	if cause != nil {
		values["error"] = cause.Error()
	}

	err := h.client.XAdd(ctx, &redis.XAddArgs{
		Stream: h.deadLetterKey,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add to dead letter stream: %w", err)
	}

	log.Warn().
		Str("message_id", messageID).
		Str("dead_letter_key", h.deadLetterKey).
		Msg("Message moved to dead letter queue")

	return nil
}
