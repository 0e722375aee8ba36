package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/RishiKendai/veritas/internal/extract"
	"github.com/RishiKendai/veritas/internal/models"
	"github.com/RishiKendai/veritas/internal/plagiarism"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "veritas:ingest"
	testGroup  = "veritas:group"
)

type fakeIngester struct {
	err   error
	calls []*models.IngestRequest
}

func (f *fakeIngester) Ingest(_ context.Context, req *models.IngestRequest) (*models.Document, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Document{ID: "d1", Name: req.Name}, nil
}

func newTestConsumer(client redis.Cmdable, ingester *fakeIngester) *Consumer {
	return NewConsumer(client, testStream, testGroup, "consumer-1", ingester, newTestRetryHandler(client), time.Hour)
}

func message(id string, values map[string]interface{}) *redis.XMessage {
	return &redis.XMessage{ID: id, Values: values}
}

func TestProcessMessage_Ingested(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{}
	c := newTestConsumer(db, ingester)

	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)

	err := c.processMessage(context.Background(), message("1-0", map[string]interface{}{
		"name":    "essay.txt",
		"content": "An essay.",
	}))
	require.NoError(t, err)
	require.Len(t, ingester.calls, 1)
	assert.Equal(t, "essay.txt", ingester.calls[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_DuplicateIsAcknowledged(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{err: fmt.Errorf("failed to store document: %w", plagiarism.ErrDuplicateDocument)}
	c := newTestConsumer(db, ingester)

	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)

	err := c.processMessage(context.Background(), message("1-0", map[string]interface{}{
		"name":    "essay.txt",
		"content": "An essay.",
	}))
	require.NoError(t, err)
	assert.Len(t, ingester.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_UnreadableFileDeadLettered(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{err: fmt.Errorf("%w: pdf: corrupt", extract.ErrExtractionFailed)}
	c := newTestConsumer(db, ingester)

	expectDeadLetter(mock, 2)
	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)

	err := c.processMessage(context.Background(), message("1-0", map[string]interface{}{
		"name":    "broken.txt",
		"content": "x",
	}))
	assert.ErrorIs(t, err, extract.ErrExtractionFailed)
	assert.Len(t, ingester.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_MalformedDeadLettered(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{}
	c := newTestConsumer(db, ingester)

	expectDeadLetter(mock, 1)
	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)

	err := c.processMessage(context.Background(), message("1-0", map[string]interface{}{
		"content": "no name",
	}))
	assert.Error(t, err)
	assert.Empty(t, ingester.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_TransientFailureRetried(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{err: errors.New("mongo unavailable")}
	c := newTestConsumer(db, ingester)

	expectDeadLetter(mock, 2)
	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)

	err := c.processMessage(context.Background(), message("1-0", map[string]interface{}{
		"name":    "essay.txt",
		"content": "An essay.",
	}))
	assert.Error(t, err)
	assert.Len(t, ingester.calls, c.deadLetters.maxRetries+1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessage_CancelledStaysPending(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{err: context.Canceled}
	c := newTestConsumer(db, ingester)
	c.deadLetters.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.processMessage(ctx, message("1-0", map[string]interface{}{
		"name":    "essay.txt",
		"content": "An essay.",
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, ingester.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureGroup(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newTestConsumer(db, &fakeIngester{})

	mock.ExpectXGroupCreateMkStream(testStream, testGroup, "$").SetVal("OK")
	assert.NoError(t, c.ensureGroup(context.Background()))

	mock.ExpectXGroupCreateMkStream(testStream, testGroup, "$").SetErr(errors.New("BUSYGROUP Consumer Group name already exists"))
	assert.NoError(t, c.ensureGroup(context.Background()))

	mock.ExpectXGroupCreateMkStream(testStream, testGroup, "$").SetErr(errors.New("NOPERM this user has no permissions"))
	assert.ErrorContains(t, c.ensureGroup(context.Background()), "failed to create consumer group")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_FailsWithoutGroup(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newTestConsumer(db, &fakeIngester{})

	mock.ExpectXGroupCreateMkStream(testStream, testGroup, "$").SetErr(errors.New("NOPERM this user has no permissions"))
	assert.Error(t, c.Run(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func readArgs() *redis.XReadGroupArgs {
	return &redis.XReadGroupArgs{
		Group:    testGroup,
		Consumer: "consumer-1",
		Streams:  []string{testStream, ">"},
		Count:    readBatchSize,
		Block:    readBlock,
	}
}

func TestReadBatch(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{}
	c := newTestConsumer(db, ingester)

	mock.ExpectXReadGroup(readArgs()).SetVal([]redis.XStream{{
		Stream: testStream,
		Messages: []redis.XMessage{
			{ID: "1-0", Values: map[string]interface{}{"name": "a.txt", "content": "First."}},
			{ID: "2-0", Values: map[string]interface{}{"name": "b.md", "content": "Second."}},
		},
	}})
	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)
	mock.ExpectXAck(testStream, testGroup, "2-0").SetVal(1)

	require.NoError(t, c.readBatch(context.Background()))
	require.Len(t, ingester.calls, 2)
	assert.Equal(t, "b.md", ingester.calls[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadBatch_Empty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newTestConsumer(db, &fakeIngester{})

	mock.ExpectXReadGroup(readArgs()).RedisNil()
	assert.NoError(t, c.readBatch(context.Background()))

	mock.ExpectXReadGroup(readArgs()).SetErr(errors.New("connection refused"))
	assert.ErrorContains(t, c.readBatch(context.Background()), "failed to read from stream")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func claimArgs(start string) *redis.XAutoClaimArgs {
	return &redis.XAutoClaimArgs{
		Stream:   testStream,
		Group:    testGroup,
		Consumer: "consumer-1",
		MinIdle:  time.Minute,
		Start:    start,
		Count:    claimBatch,
	}
}

func TestClaimStale_WalksPendingList(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{}
	c := newTestConsumer(db, ingester)

	mock.ExpectXAutoClaim(claimArgs("0-0")).SetVal([]redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"name": "a.txt", "content": "First."}},
	}, "5-0")
	mock.ExpectXAck(testStream, testGroup, "1-0").SetVal(1)
	mock.ExpectXAutoClaim(claimArgs("5-0")).SetVal([]redis.XMessage{
		{ID: "6-0", Values: map[string]interface{}{"name": "b.txt", "content": "Second."}},
	}, "0-0")
	mock.ExpectXAck(testStream, testGroup, "6-0").SetVal(1)

	c.claimStale(context.Background())

	assert.Len(t, ingester.calls, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStale_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ingester := &fakeIngester{}
	c := newTestConsumer(db, ingester)

	mock.ExpectXAutoClaim(claimArgs("0-0")).SetErr(errors.New("ERR unknown command"))

	c.claimStale(context.Background())

	assert.Empty(t, ingester.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrim_UsesRetentionCutoff(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newTestConsumer(db, &fakeIngester{})

	before := time.Now().Add(-time.Hour).UnixMilli()
	var minID string
	mock.CustomMatch(func(expected, actual []interface{}) error {
		if len(actual) != 4 || actual[0] != "xtrim" || actual[1] != testStream || actual[2] != "minid" {
			return fmt.Errorf("unexpected command %v", actual)
		}
		minID = fmt.Sprint(actual[3])
		return nil
	}).ExpectXTrimMinID(testStream, "0-0").SetVal(3)

	c.trim(context.Background())
	after := time.Now().Add(-time.Hour).UnixMilli()

	require.NoError(t, mock.ExpectationsWereMet())
	var ms int64
	_, err := fmt.Sscanf(minID, "%d-0", &ms)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, before)
	assert.LessOrEqual(t, ms, after)
}
