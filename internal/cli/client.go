package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gachabot/internal/inventory"
)

// Client talks to the gachabot HTTP API.
type Client struct {
	BaseURL    string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", false, nil, nil)
}

func (c *Client) SearchCharacters(ctx context.Context, query string, limit int) ([]inventory.Character, error) {
	v := url.Values{"q": {query}}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Characters []inventory.Character `json:"characters"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/characters?"+v.Encode(), false, nil, &out)
	return out.Characters, err
}

func (c *Client) Character(ctx context.Context, id int64) (inventory.Character, error) {
	var out inventory.Character
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/characters/%d", id), false, nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context, userID string) (inventory.Balance, error) {
	var out inventory.Balance
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/balance", false, nil, &out)
	return out, err
}

// Waifus lists a user's items. filter takes the API query keys (name,
// rarity, series, seriesname, fav).
func (c *Client) Waifus(ctx context.Context, userID string, filter url.Values) ([]inventory.Item, error) {
	path := "/v1/users/" + url.PathEscape(userID) + "/waifus"
	if len(filter) > 0 {
		path += "?" + filter.Encode()
	}
	var out struct {
		Waifus []inventory.Item `json:"waifus"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, false, nil, &out)
	return out.Waifus, err
}

func (c *Client) SetCurrency(ctx context.Context, userID string, amount int64) (inventory.Balance, error) {
	var out inventory.Balance
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/users/"+url.PathEscape(userID)+"/currency", true,
		map[string]any{"amount": amount}, &out)
	return out, err
}

func (c *Client) AssignChannel(ctx context.Context, guildID, channelID string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/admin/guilds/"+url.PathEscape(guildID)+"/channel", true,
		map[string]any{"channel_id": channelID}, nil)
}

func (c *Client) ResetLocks(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/admin/locks/reset", true, nil, nil)
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, admin bool, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if c.AdminToken == "" {
			return fmt.Errorf("admin token not set; run `gachactl login` or set GACHABOT_ADMIN_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
