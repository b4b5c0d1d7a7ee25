// Package jira is the authenticated gateway to the remote issue-tracking
// service. It owns the live session (base address plus credential) and turns
// timer actions into authenticated REST calls.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/punchclock/punch/keyring"
)

const apiPath = "/rest/api/2"

// Event is a session lifecycle signal published to the surrounding
// application.
type Event int

const (
	// EventLoggedIn is published after a successful login or session
	// restore.
	EventLoggedIn Event = iota
	// EventSessionInvalid is published when the session ends: a 401
	// response, or a failed restore at startup. The application is
	// expected to route the user back to login.
	EventSessionInvalid
)

// GatewayConfig holds configuration for creating a Gateway.
type GatewayConfig struct {
	// Keyring persists the credential across restarts.
	Keyring keyring.Store
	// Service is the identity the credential is stored under.
	Service string
	// Timeout bounds every outbound request. Zero means no timeout.
	Timeout time.Duration
	// HTTPClient is used for all requests. If nil, a client with the
	// configured timeout is created.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
	// Events receives session lifecycle signals. May be nil.
	Events func(Event)
}

// Gateway holds one mutable session and the HTTP transport. A session is
// installed by Login or RestoreSession, and cleared by a 401 response or an
// explicit Logout. Base address and credential always change together.
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger
	keyring    keyring.Store
	service    string
	events     func(Event)

	mu      sync.Mutex
	baseURL string
	token   string
}

// NewGateway creates a gateway with no session installed.
func NewGateway(cfg GatewayConfig) *Gateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := cfg.Events
	if events == nil {
		events = func(Event) {}
	}

	return &Gateway{
		httpClient: httpClient,
		logger:     logger,
		keyring:    cfg.Keyring,
		service:    cfg.Service,
		events:     events,
	}
}

// Login derives a credential from the username and password, installs it as
// the session, and probes the "who am I" endpoint. Only a successful probe
// persists the credential and publishes EventLoggedIn. On probe failure the
// tentative session stays installed so the caller can retry; it is not
// rolled back.
func (g *Gateway) Login(
	ctx context.Context,
	username, password, host string,
) error {
	// base64 of the raw UTF-8 bytes, so multi-byte usernames and
	// passwords round-trip.
	token := base64.StdEncoding.EncodeToString(
		[]byte(username + ":" + password),
	)

	g.install(host, token)

	// The probe must not invalidate the tentative session on 401: retry
	// behaviour depends on it staying installed.
	if err := g.probe(ctx); err != nil {
		return fmt.Errorf("login probe failed: %w", err)
	}

	if err := g.keyring.Save(g.service, host, token); err != nil {
		return fmt.Errorf("saving credential failed: %w", err)
	}

	g.logger.Info("logged in", "host", host, "user", username)

	g.events(EventLoggedIn)

	return nil
}

// RestoreSession attempts a silent login from the stored credential at
// startup. A missing credential is the expected new-user case: it publishes
// EventSessionInvalid and returns keyring.ErrNotFound, but nothing is
// persisted or rolled back. This path never re-saves the credential.
func (g *Gateway) RestoreSession(ctx context.Context) error {
	cred, err := g.keyring.Find(g.service)
	if err != nil {
		g.logger.Info("no stored session to restore")
		g.events(EventSessionInvalid)

		return err
	}

	g.install(cred.Account, cred.Secret)

	if err := g.probe(ctx); err != nil {
		g.clearSession()
		g.events(EventSessionInvalid)

		return fmt.Errorf("restoring session failed: %w", err)
	}

	g.logger.Info("session restored", "host", cred.Account)

	g.events(EventLoggedIn)

	return nil
}

// Logout clears the session at the application's request.
func (g *Gateway) Logout() {
	g.clearSession()
}

// HasSession reports whether a session is currently installed.
func (g *Gateway) HasSession() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.token != ""
}

// BrowseURL returns the web address for a ticket on the current host.
func (g *Gateway) BrowseURL(key string) string {
	g.mu.Lock()
	base := strings.TrimSuffix(g.baseURL, apiPath)
	g.mu.Unlock()

	return base + "/browse/" + key
}

// Get issues an authenticated GET request.
func (g *Gateway) Get(ctx context.Context, path string) ([]byte, error) {
	return g.send(ctx, http.MethodGet, path, nil)
}

// Post issues an authenticated POST request with a JSON body.
func (g *Gateway) Post(
	ctx context.Context,
	path string,
	body any,
) ([]byte, error) {
	return g.send(ctx, http.MethodPost, path, body)
}

// Put issues an authenticated PUT request with a JSON body.
func (g *Gateway) Put(
	ctx context.Context,
	path string,
	body any,
) ([]byte, error) {
	return g.send(ctx, http.MethodPut, path, body)
}

// Delete issues an authenticated DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string) ([]byte, error) {
	return g.send(ctx, http.MethodDelete, path, nil)
}

// send is the request path for all public verbs: a 401 response invalidates
// the session before the error is returned.
func (g *Gateway) send(
	ctx context.Context,
	method, path string,
	body any,
) ([]byte, error) {
	respBody, err := g.doRequest(ctx, method, path, body, true)
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// doRequest performs an HTTP request against the current session and returns
// the response body. When invalidateOn401 is false (the login and restore
// probes), a 401 is reported without touching the session.
func (g *Gateway) doRequest(
	ctx context.Context,
	method, path string,
	body any,
	invalidateOn401 bool,
) ([]byte, error) {
	g.mu.Lock()
	baseURL, token := g.baseURL, g.token
	g.mu.Unlock()

	if baseURL == "" {
		return nil, ErrNoSession
	}

	var reqBody io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		method,
		baseURL+path,
		reqBody,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Basic "+token)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if invalidateOn401 {
			g.invalidateSession()
		}

		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	return respBody, nil
}

// install atomically replaces the session. The host may carry an explicit
// scheme; https is assumed otherwise.
func (g *Gateway) install(host, token string) {
	base := host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	g.mu.Lock()
	g.baseURL = strings.TrimRight(base, "/") + apiPath
	g.token = token
	g.mu.Unlock()
}

func (g *Gateway) clearSession() {
	g.mu.Lock()
	g.baseURL = ""
	g.token = ""
	g.mu.Unlock()
}

// invalidateSession clears the session and publishes EventSessionInvalid.
// Concurrent 401s race to clear; only the first transition emits the event.
func (g *Gateway) invalidateSession() {
	g.mu.Lock()
	installed := g.token != "" || g.baseURL != ""
	g.baseURL = ""
	g.token = ""
	g.mu.Unlock()

	if !installed {
		return
	}

	g.logger.Warn("session invalidated by remote service")

	g.events(EventSessionInvalid)
}
