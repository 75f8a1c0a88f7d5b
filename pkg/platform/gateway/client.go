package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/foyer-project/foyer/pkg/platform"
)

const defaultRequestTimeout = 15 * time.Second

// Client implements platform.Facade against the platform's REST API.
type Client struct {
	HTTPClient *http.Client
	APIBase    string
	Token      string
}

// NewClient creates a REST facade client.
func NewClient(apiBase, token string) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: defaultRequestTimeout},
		APIBase:    apiBase,
		Token:      token,
	}
}

type createChannelRequest struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	ParentID  string `json:"parent_id,omitempty"`
	UserLimit int    `json:"user_limit,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	OwnerOnly bool   `json:"owner_only,omitempty"`
}

type channelResponse struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
}

// CreateVoiceChannel creates a voice channel and returns its id.
func (c *Client) CreateVoiceChannel(ctx context.Context, spaceID string, spec platform.VoiceChannelSpec) (string, error) {
	var resp channelResponse
	err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/api/spaces/%s/channels", url.PathEscape(spaceID)),
		createChannelRequest{
			Type:      "voice",
			Name:      spec.Name,
			ParentID:  spec.ParentID,
			UserLimit: spec.UserLimit,
			OwnerID:   spec.OwnerID,
		}, &resp)
	if err != nil {
		return "", fmt.Errorf("creating voice channel: %w", err)
	}
	return resp.ID, nil
}

// CreateTextChannel creates a text channel visible only to the owner.
func (c *Client) CreateTextChannel(ctx context.Context, spaceID string, spec platform.TextChannelSpec) (string, error) {
	var resp channelResponse
	err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/api/spaces/%s/channels", url.PathEscape(spaceID)),
		createChannelRequest{
			Type:      "text",
			Name:      spec.Name,
			ParentID:  spec.ParentID,
			OwnerID:   spec.OwnerID,
			OwnerOnly: true,
		}, &resp)
	if err != nil {
		return "", fmt.Errorf("creating text channel: %w", err)
	}
	return resp.ID, nil
}

// DeleteChannel removes a channel. Returns platform.ErrNotFound if gone.
func (c *Client) DeleteChannel(ctx context.Context, spaceID, channelID, reason string) error {
	path := fmt.Sprintf("/api/spaces/%s/channels/%s?reason=%s",
		url.PathEscape(spaceID), url.PathEscape(channelID), url.QueryEscape(reason))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// EditPermission creates or updates a subject's permission entry.
func (c *Client) EditPermission(ctx context.Context, channelID, subjectID string, update platform.PermissionUpdate) error {
	body := map[string]*bool{
		"allow_view":    update.AllowView,
		"allow_connect": update.AllowConnect,
	}
	path := fmt.Sprintf("/api/channels/%s/permissions/%s",
		url.PathEscape(channelID), url.PathEscape(subjectID))
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

// RemovePermission clears a subject's permission entry.
func (c *Client) RemovePermission(ctx context.Context, channelID, subjectID string) error {
	path := fmt.Sprintf("/api/channels/%s/permissions/%s",
		url.PathEscape(channelID), url.PathEscape(subjectID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// DisconnectMember drops a member from voice.
func (c *Client) DisconnectMember(ctx context.Context, spaceID, memberID, reason string) error {
	path := fmt.Sprintf("/api/spaces/%s/members/%s/disconnect",
		url.PathEscape(spaceID), url.PathEscape(memberID))
	return c.doJSON(ctx, http.MethodPost, path, map[string]string{"reason": reason}, nil)
}

// MoveMember relocates a member into a voice channel.
func (c *Client) MoveMember(ctx context.Context, spaceID, memberID, toChannelID string) error {
	path := fmt.Sprintf("/api/spaces/%s/members/%s/move",
		url.PathEscape(spaceID), url.PathEscape(memberID))
	return c.doJSON(ctx, http.MethodPost, path, map[string]string{"channel_id": toChannelID}, nil)
}

// ChannelMembers returns the live member set in join order.
func (c *Client) ChannelMembers(ctx context.Context, spaceID, channelID string) ([]string, error) {
	var resp struct {
		Members []string `json:"members"`
	}
	path := fmt.Sprintf("/api/spaces/%s/channels/%s/members",
		url.PathEscape(spaceID), url.PathEscape(channelID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// ChannelParent returns the id of a channel's parent category.
func (c *Client) ChannelParent(ctx context.Context, spaceID, channelID string) (string, error) {
	var resp channelResponse
	path := fmt.Sprintf("/api/spaces/%s/channels/%s",
		url.PathEscape(spaceID), url.PathEscape(channelID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.ParentID, nil
}

// PermissionSubjects returns subjects holding a permission entry.
func (c *Client) PermissionSubjects(ctx context.Context, channelID string) ([]string, error) {
	var resp struct {
		Subjects []string `json:"subjects"`
	}
	path := fmt.Sprintf("/api/channels/%s/permissions", url.PathEscape(channelID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subjects, nil
}

// ChannelExists reports whether a channel still exists.
func (c *Client) ChannelExists(ctx context.Context, spaceID, channelID string) (bool, error) {
	_, err := c.ChannelParent(ctx, spaceID, channelID)
	if errors.Is(err, platform.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// doJSON performs one authenticated JSON request. A 404 maps to
// platform.ErrNotFound.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBase+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return platform.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Verify interface compliance.
var _ platform.Facade = (*Client)(nil)
