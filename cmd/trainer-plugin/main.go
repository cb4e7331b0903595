package main

import (
	"context"
	"log/slog"
	"os"
	"sign-lang-pipeline/internal/core/yolo"
	"sign-lang-pipeline/plugin/shared"
	"sync"

	"github.com/hashicorp/go-plugin"
)

// yoloTrainer serves training requests by running the yolo command line
// inside the plugin process. Every run is bound to ctx so Shutdown stops the
// yolo child along with the plugin.
type yoloTrainer struct {
	executable string

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func newYoloTrainer(executable string) *yoloTrainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &yoloTrainer{executable: executable, ctx: ctx, cancel: cancel}
}

func (t *yoloTrainer) Train(req shared.TrainRequest) error {
	t.running.Add(1)
	defer t.running.Done()

	detector, err := yolo.NewCLIDetector(t.executable, req.Weights)
	if err != nil {
		return err
	}
	defer detector.Release()

	slog.Info("plugin training started", "weights", req.Weights, "data", req.Params.Data, "epochs", req.Params.Epochs)

	return detector.Train(t.ctx, req.Params)
}

// Shutdown kills any yolo process still running and waits for it to exit.
func (t *yoloTrainer) Shutdown() {
	t.cancel()
	t.running.Wait()
}

func main() {
	// stdout carries the plugin handshake.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	trainer := newYoloTrainer(os.Getenv("YOLO_EXECUTABLE"))

	// Serve returns once the host asks the plugin to quit.
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.Handshake,
		Plugins: map[string]plugin.Plugin{
			shared.TrainerPluginName: &shared.TrainerPlugin{Impl: trainer},
		},
	})

	slog.Info("trainer plugin shutting down")
	trainer.Shutdown()
}
