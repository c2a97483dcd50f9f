package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client uploads objects to a Supabase style storage API.
type Client struct {
	baseURL    string
	publicURL  string
	bucket     string
	serviceKey string
	client     *http.Client
}

// NewClient creates a blob storage client.
func NewClient(baseURL, publicURL, bucket, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicURL:  strings.TrimRight(publicURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		client:     httpClient,
	}
}

// Store writes data at path, overwriting any previous object, and returns its public url.
func (c *Client) Store(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	objectPath := escapePath(path)
	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, url.PathEscape(c.bucket), objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.ContentLength = int64(len(data))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("storage returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	return fmt.Sprintf("%s/%s/%s", c.publicURL, url.PathEscape(c.bucket), objectPath), nil
}

func escapePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
