package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fetchd/internal/api"
	"fetchd/internal/history"
	"fetchd/internal/queue"
)

// apiClient talks to a running daemon over its HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(bind string) *apiClient {
	return &apiClient{
		base: "http://" + bind,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) enqueue(req api.EnqueueRequest) (api.EnqueueResponse, error) {
	var resp api.EnqueueResponse
	err := c.do(http.MethodPost, "/api/queue", req, &resp)
	return resp, err
}

func (c *apiClient) list(statuses []string) ([]queue.Item, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", status)
	}
	path := "/api/queue"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp struct {
		Items []queue.Item `json:"items"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Items, err
}

func (c *apiClient) get(id int64) (queue.Item, error) {
	var resp struct {
		Item queue.Item `json:"item"`
	}
	err := c.do(http.MethodGet, "/api/queue/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp.Item, err
}

func (c *apiClient) cancel(id int64) (queue.Item, error) {
	var resp struct {
		Item queue.Item `json:"item"`
	}
	err := c.do(http.MethodDelete, "/api/queue/"+strconv.FormatInt(id, 10), nil, &resp)
	return resp.Item, err
}

func (c *apiClient) clearFinished() (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	err := c.do(http.MethodPost, "/api/queue/clear", nil, &resp)
	return resp.Removed, err
}

func (c *apiClient) status() (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

func (c *apiClient) history(platformName string, limit int) ([]history.Entry, error) {
	query := url.Values{}
	if platformName != "" {
		query.Set("platform", platformName)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp struct {
		Entries []history.Entry `json:"entries"`
	}
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp.Entries, err
}

func (c *apiClient) do(method, path string, payload, into any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
