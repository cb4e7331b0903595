package external

import (
	"context"
	"fmt"
	"os/exec"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/plugin/shared"
	"sync"

	"github.com/hashicorp/go-plugin"
)

// PluginDetector runs training inside a separate trainer plugin process so a
// crash in the training framework cannot take the worker down with it.
type PluginDetector struct {
	mu      sync.Mutex
	kill    func()
	trainer shared.Trainer
	weights string
}

func LoadPluginDetector(pluginPath, weights string) (*PluginDetector, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.Handshake,
		Plugins:          shared.PluginMap,
		Cmd:              exec.Command(pluginPath),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.TrainerPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.TrainerPluginName, err)
	}

	trainer, ok := raw.(shared.Trainer)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Trainer (actual type: %T)", shared.TrainerPluginName, raw)
	}

	return NewPluginDetector(trainer, client.Kill, weights), nil
}

// NewPluginDetector wraps an already dispensed trainer. kill is called once,
// on Release or when training is interrupted, and must stop the plugin.
func NewPluginDetector(trainer shared.Trainer, kill func(), weights string) *PluginDetector {
	return &PluginDetector{kill: kill, trainer: trainer, weights: weights}
}

func (d *PluginDetector) Train(ctx context.Context, params types.TrainParams) error {
	d.mu.Lock()
	trainer := d.trainer
	d.mu.Unlock()

	if trainer == nil {
		return fmt.Errorf("trainer plugin already released")
	}

	done := make(chan error, 1)
	go func(req shared.TrainRequest) {
		done <- trainer.Train(req)
	}(shared.TrainRequest{Weights: d.weights, Params: params})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Stopping the plugin interrupts the in-flight call, which then
		// returns into the buffered channel.
		d.Release()
		return fmt.Errorf("training interrupted: %w", ctx.Err())
	}
}

func (d *PluginDetector) Release() {
	d.mu.Lock()
	kill := d.kill
	d.kill = nil
	d.trainer = nil
	d.mu.Unlock()

	if kill != nil {
		kill()
	}
}
