package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

type stubWriter struct {
	err      error
	topic    string
	messages []kafka.Message
}

func (s *stubWriter) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.topic = topic
	s.messages = append(s.messages, msgs...)
	return nil
}

func TestKafkaRelayWritesKeyedTask(t *testing.T) {
	writer := &stubWriter{}
	relay := NewKafkaRelay(writer, "strava_tasks", nil)

	id, err := relay.Enqueue(context.Background(), sampleTask())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Equal(t, "strava_tasks", writer.topic)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, "11223344", string(msg.Key))
	require.Equal(t, []kafka.Header{{Key: HeaderMessageID, Value: []byte(id)}}, msg.Headers)

	var task domain.QueuedTask
	require.NoError(t, json.Unmarshal(msg.Value, &task))
	require.Equal(t, sampleTask(), task)
}

func TestKafkaRelayReturnsWriteError(t *testing.T) {
	relay := NewKafkaRelay(&stubWriter{err: errors.New("leader not available")}, "strava_tasks", nil)

	id, err := relay.Enqueue(context.Background(), sampleTask())
	require.Error(t, err)
	require.Contains(t, err.Error(), "leader not available")
	require.Empty(t, id)
}
