package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	configPath   string
	storeDir     string
	storeDriver  string
	providerName string
	modelName    string
	verbose      bool
	ciMode       bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "memoir",
	Short: "A patient interviewer that turns a life story into a memoir",
	Long: `Memoir interviews you about your life, one question at a time.
It learns a few basics about you, then walks through childhood, family,
work and the lessons you would pass on, and writes the conversation up
as a memoir in a factual, literary or letter style.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "memoir %s\n", Version)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Interview configuration file (.yaml, .json or .toml)")
	RootCmd.PersistentFlags().StringVar(&storeDir, "data-dir", "", "Where sessions are kept (default ~/.memoir)")
	RootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Session store: sqlite, file or memory")
	RootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "Text provider: stub, openai, openrouter, ollama, gemini, anthropic, cli, plugin")
	RootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on provider)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&ciMode, "ci", false, "CI mode: JSON logs, no colour")
}
