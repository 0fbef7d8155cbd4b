package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func snapshotEvent(wbID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateProduct,
		AggregateID:   wbID,
		EventType:     EventProductSnapshotSaved,
		Payload:       json.RawMessage(`{"wb_id":` + wbID + `,"name":"Чайник","price":{"current":99,"original":120,"discount":17.5}}`),
		TargetStream:  DefaultStream,
		CreatedAt:     time.Now(),
	}
}

func TestRelay_RelayBatch(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		events := []*OutboxEvent{snapshotEvent("146972802"), snapshotEvent("146972803")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == DefaultStream &&
					args.Values["event_type"] == EventProductSnapshotSaved &&
					args.Values["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		delivered, err := relay.RelayBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, delivered)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("marks event failed when redis rejects it", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		event := snapshotEvent("1")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		delivered, err := relay.RelayBatch(ctx)
		assert.NoError(t, err)
		assert.Zero(t, delivered)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty batch does not touch redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		delivered, err := relay.RelayBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, delivered)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("one failure does not stop the batch", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		events := []*OutboxEvent{snapshotEvent("1"), snapshotEvent("2")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values["aggregate_id"] == "1"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values["aggregate_id"] == "2"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		delivered, err := relay.RelayBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, delivered)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("outbox read failure is returned", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, new(MockRedisClient), logger, RelayConfig{BatchSize: 10})

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("connection reset"))

		_, err := relay.RelayBatch(ctx)
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestRelay_PublishToRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("envelope carries payload and metadata", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := NewRelay(new(MockOutboxRepository), mockRedis, nil, RelayConfig{StreamMaxLen: 10000})

		event := snapshotEvent("146972802")

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			if args.MaxLen != 10000 || !args.Approx {
				return false
			}
			val, ok := args.Values["data"].(string)
			if !ok {
				return false
			}

			var data map[string]interface{}
			if err := json.Unmarshal([]byte(val), &data); err != nil {
				return false
			}
			payload, ok := data["payload"].(map[string]interface{})
			if !ok {
				return false
			}
			metadata, ok := data["metadata"].(map[string]interface{})
			if !ok {
				return false
			}

			return data["id"] == event.ID.String() &&
				data["type"] == EventProductSnapshotSaved &&
				data["aggregate_id"] == "146972802" &&
				payload["name"] == "Чайник" &&
				metadata["source"] == "wildberries-parser" &&
				metadata["target_stream"] == DefaultStream
		})).Return(nil)

		require.NoError(t, relay.publishToRedis(ctx, event))
		mockRedis.AssertExpectations(t)
	})

	t.Run("invalid payload is not published", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := NewRelay(new(MockOutboxRepository), mockRedis, nil, RelayConfig{})

		event := snapshotEvent("1")
		event.Payload = json.RawMessage(`{broken`)

		err := relay.publishToRedis(ctx, event)
		assert.ErrorContains(t, err, "failed to unmarshal payload")
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})
}

func TestRelay_Start(t *testing.T) {
	t.Run("stop on context cancellation", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, new(MockRedisClient), nil, RelayConfig{
			PollInterval: 50 * time.Millisecond,
			BatchSize:    10,
		})

		mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() {
			done <- relay.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("relay did not stop on context cancellation")
		}
	})
}
