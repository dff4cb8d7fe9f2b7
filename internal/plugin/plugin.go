// Package plugin lets an external binary act as the text-generation
// backend. The host launches the binary with go-plugin and talks to it over
// net/rpc.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/memoir/internal/provider"
)

// HandshakeConfig is used to handshake between host and plugin.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MEMOIR_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "memoir-provider",
}

// ProviderKey is the name the provider plugin is dispensed under.
const ProviderKey = "provider"

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]plugin.Plugin{
	ProviderKey: &ProviderPlugin{},
}

// ProviderPlugin adapts a provider.Provider to go-plugin's net/rpc protocol.
type ProviderPlugin struct {
	Impl provider.Provider
}

func (p *ProviderPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &ProviderRPCServer{Impl: p.Impl}, nil
}

func (p *ProviderPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ProviderRPCClient{client: c}, nil
}

// ChatArgs is the RPC request for Chat.
type ChatArgs struct {
	Messages []provider.Message
}

// NameArgs is the empty RPC request for Name.
type NameArgs struct{}

// ProviderRPCServer runs inside the plugin process.
type ProviderRPCServer struct {
	Impl provider.Provider
}

func (s *ProviderRPCServer) Chat(args ChatArgs, resp *provider.Response) error {
	out, err := s.Impl.Chat(context.Background(), args.Messages)
	if err != nil {
		return err
	}
	*resp = *out
	return nil
}

func (s *ProviderRPCServer) Name(_ NameArgs, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

// ProviderRPCClient is the host-side provider.Provider backed by a plugin.
type ProviderRPCClient struct {
	client *rpc.Client
}

// Chat calls the plugin. net/rpc carries no deadline, so cancellation only
// abandons the wait; the plugin finishes the call on its own.
func (c *ProviderRPCClient) Chat(ctx context.Context, messages []provider.Message) (*provider.Response, error) {
	var resp provider.Response
	call := c.client.Go("Plugin.Chat", ChatArgs{Messages: messages}, &resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case done := <-call.Done:
		if done.Error != nil {
			return nil, fmt.Errorf("plugin chat failed: %w", done.Error)
		}
		return &resp, nil
	}
}

func (c *ProviderRPCClient) Name() string {
	var name string
	if err := c.client.Call("Plugin.Name", NameArgs{}, &name); err != nil {
		return "plugin"
	}
	return "plugin-" + name
}

// Launch starts the plugin binary at path and returns its provider. The
// returned function kills the plugin process.
func Launch(path string, args ...string) (provider.Provider, func(), error) {
	if path == "" {
		return nil, nil, errors.New("plugin path is required")
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path, args...), // #nosec G204
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to start plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(ProviderKey)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense provider from %s: %w", path, err)
	}

	p, ok := raw.(provider.Provider)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s does not implement a provider", path)
	}
	return p, client.Kill, nil
}

// Serve is called from a plugin binary's main to expose impl.
func Serve(impl provider.Provider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			ProviderKey: &ProviderPlugin{Impl: impl},
		},
	})
}
