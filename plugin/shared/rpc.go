package shared

import (
	"net/rpc"
)

type RPCClient struct{ client *rpc.Client }

func (m *RPCClient) Train(req TrainRequest) error {
	var resp struct{}
	return m.client.Call("Plugin.Train", req, &resp)
}

// RPCServer is what RPCClient talks to, conforming to the requirements of
// net/rpc.
type RPCServer struct {
	Impl Trainer
}

func (m *RPCServer) Train(req TrainRequest, resp *struct{}) error {
	return m.Impl.Train(req)
}
