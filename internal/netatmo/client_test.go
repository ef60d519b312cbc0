package netatmo_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type testServer struct {
	*httptest.Server
	tokenRequests atomic.Int32
	rejectAPI     atomic.Int32 // number of API calls to reject with 401
	failStatusFor string       // home id whose /homestatus returns a 500
	lastSetState  atomic.Pointer[map[string]any]
}

func newTestServer() *testServer {
	s := &testServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", s.token)
	mux.HandleFunc("/api/homesdata", s.authenticated(s.homesData))
	mux.HandleFunc("/api/homestatus", s.authenticated(s.homeStatus))
	mux.HandleFunc("/api/setstate", s.authenticated(s.setState))
	mux.HandleFunc("/api/setthermmode", s.authenticated(s.setState))
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *testServer) token(w http.ResponseWriter, r *http.Request) {
	s.tokenRequests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "fresh-token",
		"refresh_token": "next-refresh-token",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (s *testServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rejectAPI.Load() > 0 {
			s.rejectAPI.Add(-1)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *testServer) homesData(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"body":{"homes":[
		{"id":"home-1","name":"Main","rooms":[{"id":"room-1","name":"Living room","type":"livingroom","module_ids":["mod-1"]}],
		 "modules":[{"id":"mod-1","name":"Valve","type":"NRV","room_id":"room-1","bridge":"relay-1"},{"id":"relay-1","name":"Relay","type":"NAPlug"}]},
		{"id":"home-2","name":"Cottage"}
	]}}`))
}

func (s *testServer) homeStatus(w http.ResponseWriter, r *http.Request) {
	homeID := r.URL.Query().Get("home_id")
	if homeID == s.failStatusFor {
		http.Error(w, "oops", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(`{"body":{"home":{"id":"` + homeID + `","therm_mode":"schedule",
		"rooms":[{"id":"room-1","therm_measured_temperature":19.5,"therm_setpoint_temperature":21,"therm_setpoint_mode":"manual","therm_setpoint_fp":"comfort","heating_power_request":42}],
		"modules":[{"id":"mod-1","battery_level":80,"rf_strength":60,"reachable":true}]}}}`))
}

func (s *testServer) setState(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.lastSetState.Store(&body)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *testServer) client(t *testing.T) *netatmo.Client {
	t.Helper()
	cfg := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: s.URL + "/oauth2/token"},
	}
	token := &oauth2.Token{
		AccessToken:  "stored-token",
		RefreshToken: "stored-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}
	c := netatmo.New(cfg, token, nil, slog.Default())
	c.BaseURL = s.URL
	return c
}

func TestClient_GetTopology(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	c := s.client(t)

	topology, err := c.GetTopology(context.Background())
	require.NoError(t, err)
	require.Len(t, topology.Homes, 2)

	home := topology.Homes[0]
	assert.Equal(t, "home-1", home.ID)
	require.NotNil(t, home.Status)
	assert.Equal(t, "schedule", home.Status.ThermMode)
	require.Len(t, home.Status.Rooms, 1)
	require.NotNil(t, home.Status.Rooms[0].ThermMeasuredTemperature)
	assert.Equal(t, 19.5, *home.Status.Rooms[0].ThermMeasuredTemperature)
	assert.Equal(t, "comfort", home.Status.Rooms[0].ThermSetpointFP)
	require.Len(t, home.Modules, 2)
	require.NotNil(t, home.Modules[0].Bridge)
	assert.Equal(t, "relay-1", *home.Modules[0].Bridge)

	assert.Equal(t, int32(0), s.tokenRequests.Load(), "valid stored token should not be refreshed")
}

func TestClient_GetTopology_FilterHomes(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	c := s.client(t)

	topology, err := c.GetTopology(context.Background(), "home-2")
	require.NoError(t, err)
	require.Len(t, topology.Homes, 1)
	assert.Equal(t, "home-2", topology.Homes[0].ID)
}

func TestClient_GetTopology_HomeStatusFailureIsIsolated(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	s.failStatusFor = "home-1"
	c := s.client(t)

	topology, err := c.GetTopology(context.Background())
	require.NoError(t, err)
	require.Len(t, topology.Homes, 2)
	assert.Nil(t, topology.Homes[0].Status)
	assert.NotNil(t, topology.Homes[1].Status)
}

func TestClient_RefreshesTokenOnce(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	s.rejectAPI.Store(1)
	c := s.client(t)

	_, err := c.GetTopology(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.tokenRequests.Load())
}

func TestClient_SecondRejectionIsAuthError(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	s.rejectAPI.Store(2)
	c := s.client(t)

	_, err := c.GetTopology(context.Background())
	require.Error(t, err)
	var authErr *netatmo.AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(1), s.tokenRequests.Load(), "refresh-and-retry must happen at most once")
}

func TestClient_TransportError(t *testing.T) {
	s := newTestServer()
	c := s.client(t)
	s.Close()

	_, err := c.GetTopology(context.Background())
	require.Error(t, err)
	var transportErr *netatmo.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_SetRoomState(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	c := s.client(t)

	temperature := 21.5
	err := c.SetRoomState(context.Background(), "home-1", "room-1", netatmo.RoomCommand{
		Mode:        "manual",
		FPMode:      "comfort",
		Temperature: &temperature,
	})
	require.NoError(t, err)

	sent := *s.lastSetState.Load()
	home := sent["home"].(map[string]any)
	assert.Equal(t, "home-1", home["id"])
	room := home["rooms"].([]any)[0].(map[string]any)
	assert.Equal(t, "room-1", room["id"])
	assert.Equal(t, "manual", room["therm_setpoint_mode"])
	assert.Equal(t, "comfort", room["therm_setpoint_fp"])
	assert.Equal(t, 21.5, room["therm_setpoint_temperature"])
}

func TestClient_SetModuleState(t *testing.T) {
	s := newTestServer()
	defer s.Close()
	c := s.client(t)

	on := true
	brightness := 80
	err := c.SetModuleState(context.Background(), "home-1", "mod-1", netatmo.ModuleCommand{
		On:         &on,
		Brightness: &brightness,
		Bridge:     "relay-1",
	})
	require.NoError(t, err)

	sent := *s.lastSetState.Load()
	home := sent["home"].(map[string]any)
	module := home["modules"].([]any)[0].(map[string]any)
	assert.Equal(t, "mod-1", module["id"])
	assert.Equal(t, true, module["on"])
	assert.Equal(t, float64(80), module["brightness"])
	assert.Equal(t, "relay-1", module["bridge"])
}

func TestClient_NoRefreshToken(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: s.URL + "/oauth2/token"}}
	c := netatmo.New(cfg, &oauth2.Token{}, nil, slog.Default())
	c.BaseURL = s.URL

	_, err := c.GetTopology(context.Background())
	var authErr *netatmo.AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestClient_SavesRefreshedToken(t *testing.T) {
	s := newTestServer()
	defer s.Close()

	var saved *oauth2.Token
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: s.URL + "/oauth2/token"}}
	token := &oauth2.Token{RefreshToken: "stored-refresh-token"} // expired: no access token
	c := netatmo.New(cfg, token, func(t *oauth2.Token) { saved = t }, slog.Default())
	c.BaseURL = s.URL

	_, err := c.GetTopology(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "fresh-token", saved.AccessToken)
	assert.Equal(t, "next-refresh-token", saved.RefreshToken)
}

func TestDeviceTypes(t *testing.T) {
	assert.Equal(t, netatmo.ClassClimate, netatmo.ClassOf("NRV"))
	assert.Equal(t, netatmo.ClassDimmer, netatmo.ClassOf("NLF"))
	assert.Equal(t, netatmo.ClassPlug, netatmo.ClassOf("NLP"))
	assert.Equal(t, netatmo.ClassBridge, netatmo.ClassOf("NAPlug"))
	assert.Equal(t, netatmo.ClassUnknown, netatmo.ClassOf("???"))

	assert.True(t, netatmo.RequiresBridge("NRV"))
	assert.False(t, netatmo.RequiresBridge("NLP"))

	assert.True(t, netatmo.IsDimmer("NLFN"))
	assert.False(t, netatmo.IsDimmer("NLM"))
}
