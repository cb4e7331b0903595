package shared

import (
	"net/rpc"
	"sign-lang-pipeline/internal/core/types"

	"github.com/hashicorp/go-plugin"
)

const TrainerPluginName = "trainer"

var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SIGN_LANG_TRAINER_PLUGIN",
	MagicCookieValue: "7d0c3b8e-yolo-trainer",
}

var PluginMap = map[string]plugin.Plugin{
	TrainerPluginName: &TrainerPlugin{},
}

type TrainRequest struct {
	Weights string
	Params  types.TrainParams
}

// Trainer is the interface served by the out-of-process trainer.
type Trainer interface {
	Train(req TrainRequest) error
}

// TrainerPlugin implements plugin.Plugin over net/rpc.
type TrainerPlugin struct {
	Impl Trainer
}

func (p *TrainerPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *TrainerPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}
