package embed

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-plugin"
)

// Handshake is shared by the host and embedding plugins.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "HEMV_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "hemv-embedder",
}

const PluginName = "embedder"

// PluginMap is the plugin set served and dispensed by hemv.
var PluginMap = map[string]plugin.Plugin{
	PluginName: &EmbedderPlugin{},
}

// EmbedderPlugin exposes an Embedder over net/rpc.
type EmbedderPlugin struct {
	Impl Embedder
}

func (p *EmbedderPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*EmbedderPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

type EmbedArgs struct {
	Texts []string
}

type EmbedReply struct {
	Vectors [][]float32
}

// RPCServer runs inside the plugin process.
type RPCServer struct {
	Impl Embedder
}

func (s *RPCServer) Embed(args EmbedArgs, reply *EmbedReply) error {
	vecs, err := s.Impl.Embed(context.Background(), args.Texts)
	if err != nil {
		return err
	}
	reply.Vectors = vecs
	return nil
}

// RPCClient is the host side of the connection.
type RPCClient struct {
	client *rpc.Client
}

// Embed calls the plugin. Cancelling ctx abandons the call but the plugin
// may still finish the work.
func (c *RPCClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var reply EmbedReply
	call := c.client.Go("Plugin.Embed", EmbedArgs{Texts: texts}, &reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.Done:
	}
	if call.Error != nil {
		return nil, fmt.Errorf("embedding plugin: %w", call.Error)
	}
	if err := checkCount(reply.Vectors, len(texts)); err != nil {
		return nil, err
	}
	return reply.Vectors, nil
}

// ServePlugin serves impl to a hemv host. It blocks until the host exits.
func ServePlugin(impl Embedder) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &EmbedderPlugin{Impl: impl},
		},
	})
}

// Plugin is an embedder running in a child process.
type Plugin struct {
	client *plugin.Client
	Embedder
}

// LaunchPlugin starts the plugin binary and connects to it.
func LaunchPlugin(path string, args ...string) (*Plugin, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path, args...), // #nosec G204
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start embedding plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense embedding plugin: %w", err)
	}
	e, ok := raw.(Embedder)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("embedding plugin returned %T", raw)
	}
	return &Plugin{client: client, Embedder: e}, nil
}

// Close stops the plugin process.
func (p *Plugin) Close() error {
	p.client.Kill()
	return nil
}
