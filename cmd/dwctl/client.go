package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is a thin HTTP client for the monitor API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if msg, ok := out["error"].(string); ok {
			return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return out, nil
}

func (c *apiClient) ingestPrediction(req map[string]interface{}) (string, error) {
	out, err := c.do(http.MethodPost, "/api/v1/predictions", req)
	if err != nil {
		return "", err
	}
	id, _ := out["prediction_id"].(string)
	return id, nil
}

func (c *apiClient) ingestFeedback(req map[string]interface{}) error {
	_, err := c.do(http.MethodPost, "/api/v1/feedback", req)
	return err
}

func (c *apiClient) latestReport(kind string) (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/v1/reports/"+kind+"/latest", nil)
}

func (c *apiClient) status() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/v1/status", nil)
}
