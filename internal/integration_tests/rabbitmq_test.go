package integrationtests

import (
	"context"
	"encoding/json"
	"sign-lang-pipeline/internal/messaging"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	skipIfShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	receive := func(t *testing.T) messaging.Task {
		select {
		case task := <-receiver.Tasks():
			return task
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for task")
			return nil
		}
	}

	t.Run("Publish and Receive PipelineTask", func(t *testing.T) {
		payload := messaging.PipelineTaskPayload{RunId: uuid.New()}
		require.NoError(t, publisher.PublishPipelineTask(ctx, payload))

		task := receive(t)
		assert.Equal(t, messaging.PipelineQueue, task.Type())

		var receivedPayload messaging.PipelineTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
		assert.Equal(t, payload, receivedPayload)

		require.NoError(t, task.Ack())
	})

	t.Run("Nacked Task Is Not Requeued", func(t *testing.T) {
		failed := messaging.PipelineTaskPayload{RunId: uuid.New()}
		require.NoError(t, publisher.PublishPipelineTask(ctx, failed))

		task := receive(t)
		require.NoError(t, task.Nack())

		next := messaging.PipelineTaskPayload{RunId: uuid.New()}
		require.NoError(t, publisher.PublishPipelineTask(ctx, next))

		var receivedPayload messaging.PipelineTaskPayload
		task = receive(t)
		require.NoError(t, json.Unmarshal(task.Payload(), &receivedPayload))
		assert.Equal(t, next, receivedPayload)

		require.NoError(t, task.Ack())
	})

	t.Run("Publish After Close Fails", func(t *testing.T) {
		publisher.Close()
		publisher.Close()

		assert.Error(t, publisher.PublishPipelineTask(ctx, messaging.PipelineTaskPayload{RunId: uuid.New()}))
	})
}
