package main

import (
	"os"
	"path/filepath"
	"runtime"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/plugin/shared"
	"testing"
	"time"

	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeYolo(t *testing.T, body string) string {
	if runtime.GOOS == "windows" {
		t.Skip("shell script executables are not supported on windows")
	}

	path := filepath.Join(t.TempDir(), "yolo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestYoloTrainerOverRPC(t *testing.T) {
	exe := fakeYolo(t, `echo "$@" > args.txt`)
	trainer := newYoloTrainer(exe)
	defer trainer.Shutdown()

	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		shared.TrainerPluginName: &shared.TrainerPlugin{Impl: trainer},
	}, nil)
	defer client.Close()

	raw, err := client.Dispense(shared.TrainerPluginName)
	require.NoError(t, err)

	workDir := t.TempDir()
	err = raw.(shared.Trainer).Train(shared.TrainRequest{
		Weights: "yolo11n.pt",
		Params:  types.TrainParams{WorkDir: workDir, Data: "data.yaml", Name: "run", Epochs: 1, Batch: 4, ImageSize: 416, Cache: true},
	})
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(workDir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "detect train model=yolo11n.pt data=data.yaml epochs=1 batch=4 imgsz=416 name=run cache=True exist_ok=True\n", string(args))
}

func TestYoloTrainerShutdownStopsTraining(t *testing.T) {
	workDir := t.TempDir()
	exe := fakeYolo(t, `touch started
exec sleep 30`)
	trainer := newYoloTrainer(exe)

	done := make(chan error, 1)
	go func() {
		done <- trainer.Train(shared.TrainRequest{
			Weights: "yolo11n.pt",
			Params:  types.TrainParams{WorkDir: workDir, Data: "data.yaml", Name: "run"},
		})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(workDir, "started"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	start := time.Now()
	trainer.Shutdown()
	assert.Less(t, time.Since(start), 10*time.Second)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "interrupted")
	case <-time.After(10 * time.Second):
		t.Fatal("training did not stop after shutdown")
	}

	err := trainer.Train(shared.TrainRequest{
		Weights: "yolo11n.pt",
		Params:  types.TrainParams{WorkDir: workDir, Data: "data.yaml", Name: "run"},
	})
	assert.Error(t, err)
}
