package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/memoir/internal/config"
	"github.com/felixgeelhaar/memoir/internal/credential"
)

var revealSecret bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a stored setting such as provider.name, openai.model or
anthropic.api_key. Keys ending in api_key are encrypted for this machine.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		a, err := openStore()
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := credential.NewManager()
		if err != nil {
			return err
		}
		if err := m.Put(a.store, key, value); err != nil {
			return fmt.Errorf("failed to set config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", key)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		a, err := openStore()
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := credential.NewManager()
		if err != nil {
			return err
		}
		val, err := m.Get(a.store, key)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch {
		case val == "":
			fmt.Fprintln(out, "(not set)")
		case credential.IsSecretKey(key) && !revealSecret:
			fmt.Fprintln(out, credential.MaskSecret(val))
		default:
			fmt.Fprintln(out, val)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default interview configuration to the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(dataDir(config.Default()), "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		raw, err := yaml.Marshal(config.Default())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return err
		}
		if err := os.WriteFile(path, raw, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written: %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an interview configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		res := config.Validate(cfg)
		out := cmd.OutOrStdout()
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		for _, e := range res.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		if !res.Valid {
			return fmt.Errorf("%s is not valid", args[0])
		}
		fmt.Fprintf(out, "%s is valid\n", args[0])
		return nil
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configGetCmd.Flags().BoolVar(&revealSecret, "reveal", false, "Print secrets in full")
}
