package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/wp-loadmore/internal/config"
	"github.com/Sternrassler/wp-loadmore/pkg/logging"
)

// app carries the loaded configuration to subcommands.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "loadmore",
		Short:         "Load-more pagination for WordPress post listings",
		Long:          "Fetch pages of posts from a WordPress REST endpoint and append them to an HTML document, or serve rendered fragments.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-pretty", false, "human-readable console logs")
	root.PersistentFlags().String("base-url", "", "posts endpoint, e.g. https://blog.example.com/wp-json/wp/v2/posts")
	root.PersistentFlags().StringSlice("query", nil, "query parameter key=value (repeatable)")
	_ = a.v.BindPFlag("app.log_level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("app.log_pretty", root.PersistentFlags().Lookup("log-pretty"))
	_ = a.v.BindPFlag("widget.base_url", root.PersistentFlags().Lookup("base-url"))
	_ = a.v.BindPFlag("widget.query", root.PersistentFlags().Lookup("query"))

	root.AddCommand(newFetchCmd(a), newServeCmd(a))
	return root
}

func (a *app) loadConfig() error {
	v := a.v

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/loadmore")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix("LOADMORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range config.Keys() {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.FillDefaults()
	a.cfg = cfg

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.App.LogLevel),
		Pretty: cfg.App.LogPretty,
	})
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("Using config file")
	}
	return nil
}
