package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/session/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/wire"
)

const (
	pathObtain   = "/api/token/"
	pathRefresh  = "/api/token/refresh/"
	pathRegister = "/api/register/"
)

// TokenClient calls the credential endpoints with a plain HTTP client. No
// bearer token is attached and no retry is attempted here.
type TokenClient struct {
	baseURL string
	http    *http.Client
}

func NewTokenClient(baseURL string, client *http.Client) *TokenClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (c *TokenClient) Obtain(ctx context.Context, username, password string) (domain.TokenPair, error) {
	var out tokenResponse
	err := c.post(ctx, "session.obtain", pathObtain, map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: out.Access, Refresh: out.Refresh}, nil
}

func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var out tokenResponse
	err := c.post(ctx, "session.refresh", pathRefresh, map[string]string{
		"refresh": refreshToken,
	}, &out)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: out.Access, Refresh: out.Refresh}, nil
}

func (c *TokenClient) Register(ctx context.Context, username, password string) error {
	return c.post(ctx, "session.register", pathRegister, map[string]string{
		"username": username,
		"password": password,
	}, nil)
}

func (c *TokenClient) post(ctx context.Context, op, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.ErrTransport, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromStatus(op, resp.StatusCode, wire.ParseErrorBody(data).Summary())
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.ErrTransport, op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
