// Package cli wires the cobra command tree. The think command runs the
// pipeline once from the terminal; serve exposes it over HTTP.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"thinktwice/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "thinktwice",
	Short: "ThinkTwice - draft, critique, verify, refine",
	Long: `ThinkTwice runs language-model responses through an adversarial
fact-checking loop before showing them to anyone.

Every input is decomposed into explicit constraints, drafted, critiqued
against those constraints, and its factual claims are verified on two
independent tracks (web search and self re-derivation) before the draft
is selectively refined. A trust phase picks the better of draft and
refinement rather than assuming refinement helped.

ThinkTwice answers slowly on purpose.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for ThinkTwice.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("thinktwice v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.thinktwice/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.thinktwice")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match THINKTWICE_*
	viper.SetEnvPrefix("THINKTWICE")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective configuration and fills API keys from
// the conventional environment variables when the file left them empty
func loadConfig() (config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Search.BraveAPIKey == "" {
		cfg.Search.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	}
	return cfg, nil
}

// newLogger builds the process logger; verbose switches to the human
// readable development encoder
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
