// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the push/pull side of §6's Push/Pull RPC, grounded on the
// teacher's pkg/transport/http client (base URL + bearer header wrapping
// *http.Client), trimmed to the four JSON endpoints this module defines.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	token      string
}

// NewClient builds a Client against baseURL, authenticating every request
// with token.
func NewClient(baseURL string, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("mediagit: parse remote url %q: %w", baseURL, err)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    u,
		token:      token,
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = u.Path + path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", bearerPrefix+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("mediagit: %s %s: %s", method, path, apiErr.Error)
		}
		return nil, fmt.Errorf("mediagit: %s %s: status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}

// InfoRefs fetches the remote's current references.
func (c *Client) InfoRefs(ctx context.Context) (*InfoRefsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/info/refs", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out InfoRefsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mediagit: decode info/refs response: %w", err)
	}
	return &out, nil
}

// RefsUpdate requests the remote apply updates, optionally bypassing the
// old_oid precondition when force is set.
func (c *Client) RefsUpdate(ctx context.Context, updates []RefUpdateRequest, force bool) (*RefsUpdateResponse, error) {
	body, err := json.Marshal(RefsUpdateRequest{Updates: updates, Force: force})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/refs/update", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out RefsUpdateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mediagit: decode refs/update response: %w", err)
	}
	return &out, nil
}

// ObjectsWant requests a pack covering everything reachable from want but
// not from have.
func (c *Client) ObjectsWant(ctx context.Context, want, have []string) ([]byte, error) {
	body, err := json.Marshal(WantRequest{Want: want, Have: have})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/objects/want", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// ObjectsPack uploads a finalized pack for transactional ingest.
func (c *Client) ObjectsPack(ctx context.Context, pack []byte) error {
	resp, err := c.do(ctx, http.MethodPost, "/objects/pack", bytes.NewReader(pack), "application/octet-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
