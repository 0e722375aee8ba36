package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	statusKeyPrefix = "plagiarism_check_status:"
	statusTTL       = 12 * time.Hour
)

// ErrUnknownCheck is returned when no stage is recorded for a check ID
var ErrUnknownCheck = errors.New("unknown check")

var validStages = map[models.Stage]bool{
	models.StageIdle:            true,
	models.StageNormalize:       true,
	models.StageCheckDuplicate:  true,
	models.StageScore:           true,
	models.StageExtractSegments: true,
	models.StageAggregate:       true,
	models.StageCompleted:       true,
	models.StageFailed:          true,
}

// StatusTracker records the stage of every running check in Redis
type StatusTracker struct {
	redis redis.Cmdable
}

func NewStatusTracker(client redis.Cmdable) *StatusTracker {
	return &StatusTracker{redis: client}
}

func statusKey(checkID string) string {
	return statusKeyPrefix + checkID
}

func (t *StatusTracker) UpdateStage(ctx context.Context, checkID string, stage models.Stage) error {
	if !validStages[stage] {
		return fmt.Errorf("unknown stage: %s", stage)
	}

	rkey := statusKey(checkID)

	err := t.redis.Set(ctx, rkey, string(stage), statusTTL).Err()
	if err != nil {
		log.Error().Err(err).
			Str("stage", string(stage)).
			Str("checkId", checkID).
			Str("redisKey", rkey).
			Msg("Failed to update stage in Redis")
		return fmt.Errorf("failed to update stage in Redis: %w", err)
	}

	log.Trace().
		Str("stage", string(stage)).
		Str("checkId", checkID).
		Msg("Stage updated in Redis")

	return nil
}

func (t *StatusTracker) GetStage(ctx context.Context, checkID string) (models.Stage, error) {
	val, err := t.redis.Get(ctx, statusKey(checkID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownCheck
	}
	if err != nil {
		return "", fmt.Errorf("failed to read stage from Redis: %w", err)
	}

	return models.Stage(val), nil
}
