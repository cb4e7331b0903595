package external_test

import (
	"context"
	"errors"
	"sign-lang-pipeline/internal/core/external"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/plugin/shared"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTrainer struct {
	mu       sync.Mutex
	requests []shared.TrainRequest
	err      error
}

func (r *recordingTrainer) Train(req shared.TrainRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.err
}

func (r *recordingTrainer) Requests() []shared.TrainRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.TrainRequest(nil), r.requests...)
}

func (r *recordingTrainer) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// blockingTrainer holds every call until unblock is closed.
type blockingTrainer struct {
	started chan struct{}
	unblock chan struct{}
}

func newBlockingTrainer() *blockingTrainer {
	return &blockingTrainer{started: make(chan struct{}, 1), unblock: make(chan struct{})}
}

func (b *blockingTrainer) Train(req shared.TrainRequest) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.unblock
	return nil
}

func dispenseTrainer(t *testing.T, impl shared.Trainer) (shared.Trainer, *plugin.RPCClient) {
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		shared.TrainerPluginName: &shared.TrainerPlugin{Impl: impl},
	}, nil)

	raw, err := client.Dispense(shared.TrainerPluginName)
	require.NoError(t, err)

	trainer, ok := raw.(shared.Trainer)
	require.True(t, ok)
	return trainer, client
}

var params = types.TrainParams{
	WorkDir:   "/runs/1",
	Data:      "data.yaml",
	Project:   "/runs/1/runs/detect",
	Name:      "yolov11_sign_language",
	Epochs:    3,
	Batch:     16,
	ImageSize: 416,
	Cache:     true,
}

func TestPluginRPCRoundTrip(t *testing.T) {
	impl := &recordingTrainer{}
	trainer, client := dispenseTrainer(t, impl)
	defer client.Close()

	require.NoError(t, trainer.Train(shared.TrainRequest{Weights: "yolo11n.pt", Params: params}))

	requests := impl.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "yolo11n.pt", requests[0].Weights)
	assert.Equal(t, params, requests[0].Params)

	impl.failWith(errors.New("cuda out of memory"))
	err := trainer.Train(shared.TrainRequest{Weights: "yolo11n.pt", Params: params})
	assert.ErrorContains(t, err, "cuda out of memory")
}

func TestPluginDetectorTrain(t *testing.T) {
	impl := &recordingTrainer{}
	trainer, client := dispenseTrainer(t, impl)

	var kills atomic.Int32
	detector := external.NewPluginDetector(trainer, func() {
		kills.Add(1)
		client.Close()
	}, "yolo11s.pt")

	require.NoError(t, detector.Train(context.Background(), params))
	requests := impl.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, shared.TrainRequest{Weights: "yolo11s.pt", Params: params}, requests[0])

	detector.Release()
	detector.Release()
	assert.Equal(t, int32(1), kills.Load())

	err := detector.Train(context.Background(), params)
	assert.ErrorContains(t, err, "already released")
}

func TestPluginDetectorTrainCancelled(t *testing.T) {
	impl := newBlockingTrainer()
	defer close(impl.unblock)

	trainer, client := dispenseTrainer(t, impl)

	var kills atomic.Int32
	detector := external.NewPluginDetector(trainer, func() {
		kills.Add(1)
		client.Close()
	}, "yolo11n.pt")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-impl.started
		cancel()
	}()

	start := time.Now()
	err := detector.Train(ctx, params)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, int32(1), kills.Load())

	err = detector.Train(context.Background(), params)
	assert.ErrorContains(t, err, "already released")
}

func TestPluginDetectorTrainAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		impl := newBlockingTrainer()

		var kills atomic.Int32
		detector := external.NewPluginDetector(impl, func() { kills.Add(1) }, "yolo11n.pt")

		err := detector.Train(ctx, params)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), kills.Load())

		close(impl.unblock)
	}
}
