package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/memoir/internal/plugin"
)

var pluginCmd = &cobra.Command{
	Use:    "plugin",
	Short:  "Provider plugin commands",
	Hidden: true,
}

// pluginServeCmd exposes a provider to another memoir process, e.g. with
// provider.plugin_path set to "memoir plugin serve --provider ollama".
var pluginServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the selected provider over the plugin protocol",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore()
		if err != nil {
			return err
		}
		defer a.Close()

		if providerFor(a.cfg, a.store) == "plugin" {
			return errors.New("a plugin cannot serve another plugin")
		}
		p, stop, err := resolveProvider(a.cfg, a.store)
		if err != nil {
			return err
		}
		if stop != nil {
			defer stop()
		}
		plugin.Serve(p)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginServeCmd)
}
