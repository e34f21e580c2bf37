// Package ollama is a minimal client for the local Ollama server API,
// covering just the calls the launcher needs: version (readiness), tags
// (idempotency check), pull, and create.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/serve-tools/ollama-launcher/pkg/errors"
	"github.com/serve-tools/ollama-launcher/pkg/logging"
)

const DefaultBaseURL = "http://127.0.0.1:11434"

type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

// NewClient returns a client for the server at baseURL. Call deadlines come
// from the caller's context; pulls routinely run for minutes, so the
// underlying http.Client carries no timeout of its own.
func NewClient(baseURL string, logger logging.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  logger,
	}
}

// ModelInfo is one entry of the server's model listing.
type ModelInfo struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Version returns the server version. Handy as an API-level readiness target.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out versionResponse
	if err := c.getJSON(ctx, "/api/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// List returns the models the server currently knows about.
func (c *Client) List(ctx context.Context) ([]ModelInfo, error) {
	var out tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Has reports whether a model with the given name is already present.
// Names match exactly or up to the tag separator, so "tinyllama" matches
// "tinyllama:latest".
func (c *Client) Has(ctx context.Context, name string) (bool, error) {
	models, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || strings.SplitN(m.Name, ":", 2)[0] == name {
			return true, nil
		}
	}
	return false, nil
}

// Pull downloads a model by name. The call is idempotent on the server
// side: pulling a present model verifies and returns.
func (c *Client) Pull(ctx context.Context, name string) error {
	c.logger.Infof("Pulling model: %s", name)

	body := map[string]interface{}{"name": name, "stream": false}
	if err := c.postJSON(ctx, "/api/pull", body); err != nil {
		return errors.NewModelPullError("failed to pull model", err).WithContext("model", name)
	}

	c.logger.Infof("Model pulled: %s", name)
	return nil
}

// Create registers a named alias built from a Modelfile on local disk.
// Re-creating an identical alias succeeds, so provisioning stays idempotent.
func (c *Client) Create(ctx context.Context, name string, modelfilePath string) error {
	c.logger.Infof("Creating model alias: %s, modelfile: %s", name, modelfilePath)

	modelfile, err := os.ReadFile(modelfilePath)
	if err != nil {
		return errors.NewAliasCreateError("failed to read modelfile", err).
			WithContext("alias", name).
			WithContext("modelfile_path", modelfilePath)
	}

	body := map[string]interface{}{
		"name":      name,
		"modelfile": string(modelfile),
		"stream":    false,
	}
	if err := c.postJSON(ctx, "/api/create", body); err != nil {
		return errors.NewAliasCreateError("failed to create model alias", err).WithContext("alias", name)
	}

	c.logger.Infof("Model alias created: %s", name)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.NewInternalError("failed to create request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewNetworkError("request failed", err).WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewNetworkError("failed to decode response", err).WithContext("path", path)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewInternalError("failed to encode request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewNetworkError("request failed", err).WithContext("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp, path)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// responseError turns a non-200 response into an error carrying the
// server's own message when one is present in the body.
func (c *Client) responseError(resp *http.Response, path string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var serverErr errorResponse
	if json.Unmarshal(data, &serverErr) == nil && serverErr.Error != "" {
		return fmt.Errorf("server returned %d for %s: %s", resp.StatusCode, path, serverErr.Error)
	}
	return fmt.Errorf("server returned %d for %s", resp.StatusCode, path)
}
