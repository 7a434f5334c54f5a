package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pilotd/internal/errs"
)

// pullTimeout bounds a blocking model download. Pulls run inside a detached
// task, so a generous ceiling only protects against a wedged service.
const pullTimeout = 30 * time.Minute

// Pull downloads a model onto the service, blocking until the service
// reports completion.
func (c *Client) Pull(ctx context.Context, model string) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.ServiceUnavailable(fmt.Sprintf("failed to connect to model service: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model pull failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Delete removes a model from the service.
func (c *Client) Delete(ctx context.Context, model string) error {
	body, err := json.Marshal(map[string]any{"name": model})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.settings.GenTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.settings.BaseURL+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.ServiceUnavailable(fmt.Sprintf("failed to connect to model service: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model delete failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
