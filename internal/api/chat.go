package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docchat/cli/internal/docs"
	"github.com/docchat/cli/internal/scope"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversationId"`
	SystemMessage  *string  `json:"systemMessage"`
	Scope          string   `json:"scope"`
	VersionPolicy  string   `json:"versionPolicy"`
	FilterValue    string   `json:"filterValue"`
	Versions       []string `json:"versions"`
}

// Categories lists the category names chat can be scoped to.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/api/chat/categories", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Groups lists the groups chat can be scoped to.
func (c *Client) Groups(ctx context.Context) ([]docs.Group, error) {
	var groups []docs.Group
	if err := c.getJSON(ctx, "/api/chat/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupVersionLabels lists the "a.b.c" labels present in a group.
func (c *Client) GroupVersionLabels(ctx context.Context, groupID int64) ([]string, error) {
	var labels []string
	if err := c.getJSON(ctx, fmt.Sprintf("/api/chat/groups/%d/versions", groupID), &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// FileNames lists original file names (legacy FILE scope).
func (c *Client) FileNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, "/api/chat/files", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// FileVersionLabels lists the version labels of one file name (legacy FILE
// scope).
func (c *Client) FileVersionLabels(ctx context.Context, fileName string) ([]string, error) {
	var labels []string
	path := "/api/chat/files/" + url.PathEscape(fileName) + "/versions"
	if err := c.getJSON(ctx, path, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// VersionLabels resolves the version list for the scope's selected value.
func (c *Client) VersionLabels(ctx context.Context, s scope.Scope, filterValue string) ([]string, error) {
	switch s {
	case scope.Group:
		id, err := strconv.ParseInt(filterValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid group id %q: %w", filterValue, err)
		}
		return c.GroupVersionLabels(ctx, id)
	case scope.File:
		return c.FileVersionLabels(ctx, filterValue)
	default:
		return nil, fmt.Errorf("scope %s has no versions", s)
	}
}

// Chat starts a chat exchange and returns the streaming body. The caller
// must close it.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if req.Versions == nil {
		req.Versions = []string{}
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// the body is read for as long as the answer streams; ctx cancels it
	resp, err := c.roundTrip(ctx, c.streamClient, http.MethodPost, "/api/chat", bytes.NewReader(jsonData), "application/json")
	if err != nil {
		return nil, err
	}
	c.logger.Info("chat stream opened", "conversationId", req.ConversationID, "scope", req.Scope, "policy", req.VersionPolicy)
	return resp.Body, nil
}
