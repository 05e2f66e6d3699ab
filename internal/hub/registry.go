package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

const registriesPath = "/_ui/v1/execution-environments/registries/"

// Registry is an execution environment registry as returned by the UI API.
// Fields keeps the raw document because the identifier field differs
// between hub versions.
type Registry struct {
	Name   string
	URL    string
	Fields map[string]any
}

// Identifier returns the value of the given identifier field.
func (r *Registry) Identifier(field string) (string, bool) {
	if r == nil {
		return "", false
	}
	switch v := r.Fields[field].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// FindRegistry looks up an execution environment registry by name.
// It returns an error wrapping ErrNotFound when no registry matches exactly.
func (c *Client) FindRegistry(ctx context.Context, name string) (*Registry, error) {
	reqURL := c.apiRoot + registriesPath + "?name=" + url.QueryEscape(name)
	respBody, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing registries: %w", err)
	}

	var page struct {
		Data []map[string]any `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding registry list: %w", err)
	}

	for _, doc := range page.Data {
		docName, _ := doc["name"].(string)
		if docName != name {
			continue
		}
		reg := &Registry{Name: docName, Fields: doc}
		reg.URL, _ = doc["url"].(string)
		slog.Debug("registry found", "name", name, "url", reg.URL)
		return reg, nil
	}
	return nil, fmt.Errorf("registry %q: %w", name, ErrNotFound)
}

// TriggerIndex starts indexing of the registry with the given identifier and
// returns the task reference reported by the hub.
func (c *Client) TriggerIndex(ctx context.Context, id string) (string, error) {
	reqURL := c.apiRoot + registriesPath + url.PathEscape(id) + "/index/"
	respBody, err := c.do(ctx, http.MethodPost, reqURL, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("starting index: %w", err)
	}

	var result struct {
		Task string `json:"task"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding index response: %w", err)
	}
	if result.Task == "" {
		return "", fmt.Errorf("index response from %s carried no task", reqURL)
	}
	return result.Task, nil
}

// GetTask fetches the current status of a task. The reference may be a bare
// task id, an API path, or an absolute URL.
func (c *Client) GetTask(ctx context.Context, task string) (*Task, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.taskURL(task), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching task: %w", err)
	}

	var t Task
	if err := json.Unmarshal(respBody, &t); err != nil {
		return nil, fmt.Errorf("decoding task: %w", err)
	}
	if t.State == "" {
		return nil, fmt.Errorf("task %s has no state", task)
	}
	return &t, nil
}

func (c *Client) taskURL(task string) string {
	u, err := url.Parse(task)
	switch {
	case err == nil && u.IsAbs():
		return task
	case len(task) > 0 && task[0] == '/':
		return c.host + task
	default:
		return c.apiRoot + "/v3/tasks/" + url.PathEscape(task) + "/"
	}
}
