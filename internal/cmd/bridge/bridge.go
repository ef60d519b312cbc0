// Package bridge assembles and runs the daemon: the Netatmo client, the
// polling coordinator, the entity registry and the HTTP surfaces.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/halcyon-home/netatmo-energy/internal/collector"
	"github.com/halcyon-home/netatmo-energy/internal/coordinator"
	"github.com/halcyon-home/netatmo-energy/internal/entities"
	"github.com/halcyon-home/netatmo-energy/internal/health"
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/halcyon-home/netatmo-energy/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var Cmd = cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return Run(cmd.Context(), viper.GetViper(), prometheus.DefaultRegisterer, slog.Default())
	},
}

// Run wires up all components and runs them until ctx is cancelled.
func Run(ctx context.Context, v *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) error {
	client, err := makeClient(v, logger.With(slog.String("component", "netatmo")))
	if err != nil {
		return fmt.Errorf("netatmo: %w", err)
	}
	apiMetrics := netatmo.NewAPIMetrics(nil)
	registry.MustRegister(apiMetrics)
	client.Instrument(apiMetrics)

	c := coordinator.New(client, coordinator.Configuration{
		Interval: v.GetDuration("poller.interval"),
		Debounce: v.GetDuration("poller.debounce"),
		HomeIDs:  v.GetStringSlice("netatmo.homes"),
		OnAuthError: func(err error) {
			logger.Error("authentication failed, bridge needs to be re-authorized", "err", err)
		},
	}, logger.With(slog.String("component", "coordinator")))

	overrides, err := entities.LoadOverridesFile(filepath.Join(filepath.Dir(v.ConfigFileUsed()), "entities.yaml"))
	if err != nil {
		return fmt.Errorf("entity overrides: %w", err)
	}
	registryTask := entities.NewRegistry(c, overrides, logger)
	registryTask.OnDiscover = func(e entities.Entity) {
		logger.Info("entity discovered", "id", e.UniqueID(), "name", e.Name())
	}
	registryTask.OnRemove = func(id string) {
		logger.Info("entity removed", "id", id)
	}

	coll := &collector.Collector{Publisher: c, Logger: logger.With(slog.String("component", "collector"))}
	registry.MustRegister(coll)

	h := health.New(c, logger.With(slog.String("component", "health")))

	mux := http.NewServeMux()
	mux.Handle("/health", h)
	mux.Handle("/webhook", webhook.New(c, logger))

	promMux := http.NewServeMux()
	promMux.Handle("/metrics", promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error { return registryTask.Run(ctx) })
	g.Go(func() error { return coll.Run(ctx) })
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return runServer(ctx, v.GetString("health.addr"), mux) })
	g.Go(func() error { return runServer(ctx, v.GetString("exporter.addr"), promMux) })
	return g.Wait()
}

func runServer(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// makeClient builds the API client. The refresh token comes from the token
// file when one exists (i.e. the bridge ran before), falling back to the
// configured token for first runs. Refreshed tokens are written back to the
// token file, since the vendor rotates refresh tokens on use.
func makeClient(v *viper.Viper, logger *slog.Logger) (*netatmo.Client, error) {
	cfg := &oauth2.Config{
		ClientID:     v.GetString("netatmo.clientId"),
		ClientSecret: v.GetString("netatmo.clientSecret"),
		Endpoint:     netatmo.Endpoint,
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("no client id / secret configured")
	}

	tokenFile := v.GetString("netatmo.tokenFile")
	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	if token == nil {
		refreshToken := v.GetString("netatmo.refreshToken")
		if refreshToken == "" {
			return nil, errors.New("no refresh token configured")
		}
		token = &oauth2.Token{RefreshToken: refreshToken}
	}

	var saveToken func(*oauth2.Token)
	if tokenFile != "" {
		saveToken = func(token *oauth2.Token) {
			if err := storeToken(tokenFile, token); err != nil {
				logger.Warn("failed to persist token", "err", err)
			}
		}
	}
	return netatmo.New(cfg, token, saveToken, logger), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err = json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("token file: %w", err)
	}
	return &token, nil
}

func storeToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err = json.NewEncoder(f).Encode(token); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
