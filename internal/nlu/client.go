// Package nlu talks to an Ollama-compatible language model service and turns
// free text into structured intents, with a deterministic degraded mode when
// the service is unreachable.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pilotd/internal/errs"
)

// Settings configures the NLU client.
type Settings struct {
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Enabled      bool
	ProbeTimeout time.Duration
	GenTimeout   time.Duration
}

// Client is a thin HTTP client for the model service. All calls block with
// bounded timeouts; callers never retry, they degrade.
type Client struct {
	settings Settings
	http     *http.Client
	log      zerolog.Logger
}

// NewClient builds a Client from settings.
func NewClient(settings Settings, log zerolog.Logger) (*Client, error) {
	if settings.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	settings.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	if settings.ProbeTimeout <= 0 {
		settings.ProbeTimeout = 5 * time.Second
	}
	if settings.GenTimeout <= 0 {
		settings.GenTimeout = 60 * time.Second
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 1000
	}

	return &Client{
		settings: settings,
		http:     &http.Client{},
		log:      log,
	}, nil
}

// Model returns the configured active model name.
func (c *Client) Model() string { return c.settings.Model }

// SetModel switches the active model used for generation.
func (c *Client) SetModel(model string) { c.settings.Model = model }

// Available probes the service's tag listing endpoint. Any failure within the
// probe timeout counts as unavailable.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.settings.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// TagInfo describes one model installed on the service.
type TagInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Tags lists the models installed on the service.
func (c *Client) Tags(ctx context.Context) ([]TagInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.ServiceUnavailable(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.ServiceUnavailable(fmt.Sprintf("tags endpoint returned %d", resp.StatusCode))
	}

	var payload struct {
		Models []TagInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Models, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs one completion against the active model. The prompt is
// wrapped with the system prompt and optional context before sending.
func (c *Client) Generate(ctx context.Context, prompt, promptContext string) (string, error) {
	if !c.settings.Enabled {
		return "", errs.ServiceUnavailable("assistant is disabled")
	}
	if !c.Available(ctx) {
		return "", errs.ServiceUnavailable("Ollama service is not available")
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.settings.Model,
		Prompt: c.preparePrompt(prompt, promptContext),
		Stream: false,
		Options: generateOptions{
			Temperature: c.settings.Temperature,
			NumPredict:  c.settings.MaxTokens,
		},
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.GenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.ServiceUnavailable(fmt.Sprintf("failed to connect to model service: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model service error: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Response, nil
}

func (c *Client) preparePrompt(prompt, promptContext string) string {
	system := c.settings.SystemPrompt
	if system == "" {
		system = "You are Pilot, an intelligent assistant for the business data platform."
	}

	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\n")
	if promptContext != "" {
		fmt.Fprintf(&sb, "Context: %s\n\n", promptContext)
	}
	fmt.Fprintf(&sb, "User: %s\n\nAssistant:", prompt)
	return sb.String()
}
