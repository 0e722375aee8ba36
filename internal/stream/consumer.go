package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/ingest"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	readBatchSize = 10
	readBlock     = time.Second
	claimBatch    = 50
)

// Consumer feeds ingestion requests from a Redis stream consumer group into
// the corpus. An entry is acknowledged once its document is stored, found to
// be a duplicate or moved to the dead letter stream.
type Consumer struct {
	client       redis.Cmdable
	streamKey    string
	group        string
	name         string
	ingester     ingest.Ingester
	deadLetters  *RetryHandler
	retention    time.Duration
	claimIdle    time.Duration // entries idle this long belong to a dead consumer
	claimEvery   time.Duration
	trimEvery    time.Duration
	errorBackoff time.Duration
}

func NewConsumer(
	client redis.Cmdable,
	streamKey string,
	group string,
	name string,
	ingester ingest.Ingester,
	retryHandler *RetryHandler,
	retention time.Duration,
) *Consumer {
	return &Consumer{
		client:       client,
		streamKey:    streamKey,
		group:        group,
		name:         name,
		ingester:     ingester,
		deadLetters:  retryHandler,
		retention:    retention,
		claimIdle:    time.Minute,
		claimEvery:   30 * time.Second,
		trimEvery:    time.Hour,
		errorBackoff: time.Second,
	}
}

// Run consumes the stream until ctx is cancelled. Entries left pending by a
// crashed consumer are reclaimed at start and then every claimEvery; entries
// older than the retention are trimmed every trimEvery.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	c.claimStale(ctx)
	c.trim(ctx)

	claimTicker := time.NewTicker(c.claimEvery)
	defer claimTicker.Stop()
	trimTicker := time.NewTicker(c.trimEvery)
	defer trimTicker.Stop()

	log.Info().
		Str("stream", c.streamKey).
		Str("group", c.group).
		Str("consumer", c.name).
		Dur("retention", c.retention).
		Msg("Consuming ingest stream")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-claimTicker.C:
			c.claimStale(ctx)
		case <-trimTicker.C:
			c.trim(ctx)
		default:
		}

		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("stream", c.streamKey).Msg("Failed to read ingest stream")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.errorBackoff):
			}
		}
	}
}

// ensureGroup creates the consumer group, and the stream with it. Only
// entries added after creation are delivered.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.streamKey, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	if err == nil {
		log.Info().Str("stream", c.streamKey).Str("group", c.group).Msg("Created consumer group")
	}
	return nil
}

// readBatch ingests the next entries delivered to this consumer
func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.streamKey, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		c.ingestAll(ctx, s.Messages)
	}
	return nil
}

// claimStale takes over entries another consumer received but never
// acknowledged, walking the pending list with XAUTOCLAIM
func (c *Consumer) claimStale(ctx context.Context) {
	start := "0-0"
	claimed := 0
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.streamKey,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  c.claimIdle,
			Start:    start,
			Count:    claimBatch,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("stream", c.streamKey).Msg("Failed to claim stale ingest entries")
			return
		}

		claimed += len(msgs)
		c.ingestAll(ctx, msgs)

		if next == "" || next == "0-0" || ctx.Err() != nil {
			break
		}
		start = next
	}

	if claimed > 0 {
		log.Info().Int("claimed", claimed).Str("consumer", c.name).Msg("Reclaimed stale ingest entries")
	}
}

// trim drops entries older than the retention period
func (c *Consumer) trim(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)
	trimmed, err := c.client.XTrimMinID(ctx, c.streamKey, fmt.Sprintf("%d-0", cutoff.UnixMilli())).Result()
	if err != nil {
		log.Warn().Err(err).Str("stream", c.streamKey).Msg("Failed to trim ingest stream")
		return
	}
	if trimmed > 0 {
		log.Debug().Int64("trimmed", trimmed).Time("cutoff", cutoff).Msg("Trimmed ingest stream")
	}
}

func (c *Consumer) ingestAll(ctx context.Context, msgs []redis.XMessage) {
	for i := range msgs {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx, &msgs[i]); err != nil {
			log.Error().Err(err).Str("message_id", msgs[i].ID).Msg("Ingest entry failed")
		}
	}
}

// processMessage ingests a single entry. Every entry is acknowledged once
// it is stored, rejected as a duplicate or moved to the dead letter stream.
func (c *Consumer) processMessage(ctx context.Context, msg *redis.XMessage) error {
	fields := make(map[string]string, len(msg.Values))
	raw := make(map[string]interface{}, len(msg.Values))
	for key, val := range msg.Values {
		if value, ok := val.(string); ok {
			fields[key] = value
			raw[key] = value
		}
	}

	req, err := ParseIngestRequest(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		if dlqErr := c.deadLetters.SendToDeadLetter(ctx, msg.ID, raw, err); dlqErr != nil {
			log.Error().Err(dlqErr).Str("message_id", msg.ID).Msg("Failed to dead-letter malformed entry")
		}
		c.acknowledge(ctx, msg.ID)
		return fmt.Errorf("malformed ingest entry: %w", err)
	}

	err = c.deadLetters.RetryWithBackoff(ctx, func() error {
		_, err := c.ingester.Ingest(ctx, req)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, plagiarism.ErrDuplicateDocument):
			log.Info().Str("message_id", msg.ID).Str("name", req.Name).Msg("Document already in corpus, skipping")
			return nil
		case errors.Is(err, extract.ErrExtractionFailed), errors.Is(err, plagiarism.ErrEmptyDocumentName):
			return Permanent(err)
		default:
			return err
		}
	}, msg.ID, raw)

	if errors.Is(err, context.Canceled) {
		// stays pending and is reclaimed later
		return err
	}
	if ackErr := c.acknowledge(ctx, msg.ID); ackErr != nil && err == nil {
		return ackErr
	}
	return err
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.streamKey, c.group, messageID).Err(); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to acknowledge ingest entry")
		return err
	}
	return nil
}
