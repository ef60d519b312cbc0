// Package cmd holds the netatmo-bridge command tree.
package cmd

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/halcyon-home/netatmo-energy/internal/cmd/bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "netatmo-bridge",
		Short: "Bridge for Netatmo Energy thermostats and lights",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&bridge.Cmd)
}

var args = charmer.Arguments{
	"debug":                charmer.Argument{Default: false, Help: "Log debug messages"},
	"netatmo.clientId":     charmer.Argument{Default: "", Help: "Netatmo OAuth2 client id"},
	"netatmo.clientSecret": charmer.Argument{Default: "", Help: "Netatmo OAuth2 client secret"},
	"netatmo.refreshToken": charmer.Argument{Default: "", Help: "Netatmo OAuth2 refresh token"},
	"netatmo.tokenFile":    charmer.Argument{Default: "", Help: "File to persist refreshed tokens"},
	"netatmo.homes":        charmer.Argument{Default: []string{}, Help: "Home ids to bridge (default: all)"},
	"poller.interval":      charmer.Argument{Default: 60 * time.Second, Help: "Poller interval"},
	"poller.debounce":      charmer.Argument{Default: 30 * time.Second, Help: "How long a command outranks polled data"},
	"exporter.addr":        charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":          charmer.Argument{Default: ":8080", Help: "Address of /health and /webhook endpoints"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/netatmo-bridge/")
		viper.AddConfigPath("$HOME/.netatmo-bridge")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("NETATMO_BRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
