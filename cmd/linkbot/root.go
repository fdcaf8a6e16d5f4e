package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wippyai/robot-bridge/config"
	"github.com/wippyai/robot-bridge/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Module     string
	Server     string
	LogLevel   string
	Verbose    bool
}

// NewRootCommand creates the linkbot root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linkbot",
		Short: "Drive robots through a hosted daemon module",
		Long: `linkbot loads a robot daemon compiled to WebAssembly, connects its
byte stream to a daemon server and issues robot commands through it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindGlobalFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewLedCommand(opts))
	cmd.AddCommand(NewInteractiveCommand(opts))

	return cmd
}

func bindGlobalFlags(fs *pflag.FlagSet, opts *RootOptions) {
	fs.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	fs.StringVar(&opts.Module, "module", "", "daemon module (.wasm), overrides config")
	fs.StringVar(&opts.Server, "server", "", "daemon server address, overrides config")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// loadConfig reads the config file, if any, and applies flags that were set
// on the command line.
func loadConfig(fs *pflag.FlagSet, opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fs.Changed("module") {
		cfg.Module = opts.Module
	}
	if fs.Changed("server") {
		cfg.Server.Address = opts.Server
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and builds the process logger.
func setup(cmd *cobra.Command, opts *RootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd.Flags(), opts)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return nil, nil, err
	}
	engine.SetLogger(logger)
	return cfg, logger, nil
}
