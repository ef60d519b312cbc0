// Package netatmo provides a client for the Netatmo Energy API.
//
// The client wraps the topology (/homesdata), status (/homestatus) and
// command (/setstate, /setthermmode) endpoints. It holds no state between
// calls other than the OAuth2 token, which it refreshes at most once per call
// when the API rejects it.
package netatmo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
)

const baseURL = "https://api.netatmo.com"

// OAuth2 endpoints for the Netatmo API.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://api.netatmo.com/oauth2/authorize",
	TokenURL: "https://api.netatmo.com/oauth2/token",
}

// Client calls the Netatmo Energy API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	auth       *authenticator
	logger     *slog.Logger
}

// New creates a Client. The token comes from the host's token storage;
// saveToken (optional) is called whenever the client obtains a fresh one, so
// the host can persist it.
func New(cfg *oauth2.Config, token *oauth2.Token, saveToken func(*oauth2.Token), logger *slog.Logger) *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		BaseURL:    baseURL,
		auth:       &authenticator{cfg: cfg, token: token, save: saveToken},
		logger:     logger,
	}
}

// GetTopology retrieves all homes with their rooms & modules, plus the live
// status of each home. If homeIDs is non-empty, other homes are skipped.
//
// A failed status call for one home does not fail the others: the home is
// returned with a nil Status and the error is logged. Authentication errors
// do abort, since they will fail for every home.
func (c *Client) GetTopology(ctx context.Context, homeIDs ...string) (Topology, error) {
	var homesData homesDataResponse
	if err := c.call(ctx, http.MethodGet, "/api/homesdata", nil, &homesData); err != nil {
		return Topology{}, fmt.Errorf("homesdata: %w", err)
	}

	wanted := func(string) bool { return true }
	if len(homeIDs) > 0 {
		ids := make(map[string]struct{}, len(homeIDs))
		for _, id := range homeIDs {
			ids[id] = struct{}{}
		}
		wanted = func(id string) bool { _, ok := ids[id]; return ok }
	}

	var topology Topology
	for _, homeData := range homesData.Body.Homes {
		if !wanted(homeData.ID) {
			continue
		}
		home := Home{HomeData: homeData}
		status, err := c.getHomeStatus(ctx, homeData.ID)
		switch {
		case err == nil:
			home.Status = status
		case isAuthError(err):
			return Topology{}, fmt.Errorf("homestatus %s: %w", homeData.ID, err)
		default:
			c.logger.Warn("failed to get home status", "home", homeData.ID, "err", err)
		}
		topology.Homes = append(topology.Homes, home)
	}
	return topology, nil
}

func (c *Client) getHomeStatus(ctx context.Context, homeID string) (*HomeStatus, error) {
	var status homeStatusResponse
	path := "/api/homestatus?home_id=" + url.QueryEscape(homeID)
	if err := c.call(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status.Body.Home, nil
}

// SetRoomState issues a room thermostat command.
func (c *Client) SetRoomState(ctx context.Context, homeID, roomID string, cmd RoomCommand) error {
	body := setStateRequest{Home: setStateHome{
		ID: homeID,
		Rooms: []setStateRoom{{
			ID:                       roomID,
			ThermSetpointMode:        cmd.Mode,
			ThermSetpointFP:          cmd.FPMode,
			ThermSetpointTemperature: cmd.Temperature,
			ThermSetpointEndTime:     cmd.EndTime,
		}},
	}}
	var resp statusResponse
	if err := c.call(ctx, http.MethodPost, "/api/setstate", body, &resp); err != nil {
		return fmt.Errorf("setstate: %w", err)
	}
	return nil
}

// SetModuleState issues a module command (on/off, brightness).
func (c *Client) SetModuleState(ctx context.Context, homeID, moduleID string, cmd ModuleCommand) error {
	body := setStateRequest{Home: setStateHome{
		ID: homeID,
		Modules: []setStateModule{{
			ID:         moduleID,
			On:         cmd.On,
			Brightness: cmd.Brightness,
			Bridge:     cmd.Bridge,
		}},
	}}
	var resp statusResponse
	if err := c.call(ctx, http.MethodPost, "/api/setstate", body, &resp); err != nil {
		return fmt.Errorf("setstate: %w", err)
	}
	return nil
}

// SetThermMode sets the whole-home thermostat mode (schedule, away,
// frost_guard, aka "hg").
func (c *Client) SetThermMode(ctx context.Context, homeID, mode string) error {
	body := struct {
		HomeID    string `json:"home_id"`
		ThermMode string `json:"therm_mode"`
	}{HomeID: homeID, ThermMode: mode}
	var resp statusResponse
	if err := c.call(ctx, http.MethodPost, "/api/setthermmode", body, &resp); err != nil {
		return fmt.Errorf("setthermmode: %w", err)
	}
	return nil
}

// call performs one authenticated API request. On a 401/403 it forces a token
// refresh and retries exactly once; a second rejection is an AuthError.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	forceRefresh := false
	for {
		token, err := c.auth.accessToken(ctx, forceRefresh)
		if err != nil {
			return &AuthError{Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return &TransportError{Method: method, Path: path, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return &TransportError{Method: method, Path: path, Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err = json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return &TransportError{Method: method, Path: path, Err: fmt.Errorf("decode response: %w", err)}
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			_ = resp.Body.Close()
			if forceRefresh {
				return &AuthError{Err: fmt.Errorf("token rejected with status %d", resp.StatusCode)}
			}
			c.logger.Debug("token rejected, refreshing", "status", resp.StatusCode)
			forceRefresh = true
		default:
			_ = resp.Body.Close()
			return &TransportError{Method: method, Path: path, StatusCode: resp.StatusCode}
		}
	}
}

func isAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// authenticator holds the OAuth2 token and refreshes it when expired or
// explicitly rejected by the API.
type authenticator struct {
	mu    sync.Mutex
	cfg   *oauth2.Config
	token *oauth2.Token
	save  func(*oauth2.Token)
}

func (a *authenticator) accessToken(ctx context.Context, force bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != nil && a.token.Valid() && !force {
		return a.token.AccessToken, nil
	}
	if a.token == nil || a.token.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token available")
	}

	// start from the refresh token only, so the token source cannot hand the
	// stale access token back
	src := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: a.token.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = a.token.RefreshToken
	}
	a.token = token
	if a.save != nil {
		a.save(token)
	}
	return token.AccessToken, nil
}
