package plagiarism

import (
	"context"
	"errors"
	"testing"

	"github.com/RishiKendai/veritas/internal/models"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTracker_UpdateAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tracker := NewStatusTracker(db)
	ctx := context.Background()

	mock.ExpectSet("plagiarism_check_status:check-1", "score", statusTTL).SetVal("OK")
	require.NoError(t, tracker.UpdateStage(ctx, "check-1", models.StageScore))

	mock.ExpectGet("plagiarism_check_status:check-1").SetVal("score")
	stage, err := tracker.GetStage(ctx, "check-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageScore, stage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTracker_UnknownCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tracker := NewStatusTracker(db)

	mock.ExpectGet("plagiarism_check_status:missing").RedisNil()
	_, err := tracker.GetStage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownCheck)
}

func TestStatusTracker_RejectsUnknownStage(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tracker := NewStatusTracker(db)

	err := tracker.UpdateStage(context.Background(), "check-1", models.Stage("bogus"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusTracker_RedisFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	tracker := NewStatusTracker(db)

	mock.ExpectSet("plagiarism_check_status:check-1", "failed", statusTTL).SetErr(errors.New("connection refused"))
	err := tracker.UpdateStage(context.Background(), "check-1", models.StageFailed)
	assert.ErrorContains(t, err, "connection refused")
}
