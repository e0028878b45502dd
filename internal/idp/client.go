// Package idp implements the identity-provider client used for login
// handshakes.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	coreconfig "postsaver/core/config"
	"postsaver/core/logger"
	"postsaver/internal/auth"
)

// Client opens identity sessions against the provider's REST API. It
// implements auth.Provider.
type Client struct {
	base   string
	client *http.Client
	log    *slog.Logger
}

// New builds a client from configuration.
func New(cfg coreconfig.IdentityConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
		log:    logger.AUTH,
	}
}

// Connect opens a provider session for userID.
func (c *Client) Connect(ctx context.Context, userID int64) (auth.Conn, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	err := c.post(ctx, "/v1/sessions", map[string]any{"user_id": userID}, &out)
	if err != nil {
		return nil, fmt.Errorf("connect identity provider: %w", err)
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("connect identity provider: empty session id")
	}
	c.log.Debug("identity session opened", "user_id", userID)
	return &conn{client: c, sessionID: out.SessionID}, nil
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// The provider rejected the submitted credentials; the handshake
		// holds its state and the user may retry.
		return auth.ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("identity provider status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// conn is one open provider session.
type conn struct {
	client    *Client
	sessionID string
}

func (cn *conn) RequestCode(ctx context.Context, phone string) error {
	return cn.client.post(ctx, "/v1/sessions/"+cn.sessionID+"/code",
		map[string]any{"phone": phone}, nil)
}

func (cn *conn) SubmitCode(ctx context.Context, code string) (auth.SubmitResult, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := cn.client.post(ctx, "/v1/sessions/"+cn.sessionID+"/verify",
		map[string]any{"code": code}, &out)
	if err != nil {
		return 0, err
	}
	if out.Status == "second_factor_required" {
		return auth.ResultNeedsSecondFactor, nil
	}
	return auth.ResultAuthenticated, nil
}

func (cn *conn) SubmitSecondFactor(ctx context.Context, secret string) error {
	return cn.client.post(ctx, "/v1/sessions/"+cn.sessionID+"/second-factor",
		map[string]any{"secret": secret}, nil)
}

func (cn *conn) Disconnect(ctx context.Context) error {
	return cn.client.delete(ctx, "/v1/sessions/"+cn.sessionID)
}
