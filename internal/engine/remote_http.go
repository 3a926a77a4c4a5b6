package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lifeboard/internal/model"
)

// Client is the HTTP Remote: one method per endpoint of the tasks API.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a Remote against baseURL (e.g. "http://localhost:8080").
// A nil httpClient gets a 10s-timeout default.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// do runs one request and decodes the response into out (when non-nil).
// Any failure comes back as *RemoteError: transport errors carry status
// zero, non-2xx responses carry the status and the server's error message
// when it sent one.
func (c *Client) do(ctx context.Context, method, route string, body, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Route: route, Msg: err.Error()}
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+route, buf)
	if err != nil {
		return &RemoteError{Route: route, Msg: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Route: route, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &RemoteError{Status: resp.StatusCode, Route: route, Msg: e.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RemoteError{Status: resp.StatusCode, Route: route, Msg: err.Error()}
		}
	}
	return nil
}

func (c *Client) List(ctx context.Context, from, to string) ([]model.Task, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	route := "/api/tasks"
	if len(q) > 0 {
		route += "?" + q.Encode()
	}
	var ts []model.Task
	if err := c.do(ctx, http.MethodGet, route, nil, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *Client) Graveyard(ctx context.Context) ([]model.Task, error) {
	var ts []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks?graveyard=1", nil, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *Client) Create(ctx context.Context, t model.Task) (model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", t, &out); err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func (c *Client) Patch(ctx context.Context, id model.TaskID, p model.Patch) (model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+string(id), p, &out); err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id model.TaskID) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+string(id), nil, nil)
}

func (c *Client) BatchPunt(ctx context.Context, ids []model.TaskID, sourceDate, targetDate string) error {
	in := struct {
		TaskIDs    []string `json:"taskIds"`
		SourceDate string   `json:"sourceDate"`
		TargetDate string   `json:"targetDate"`
	}{TaskIDs: idStrings(ids), SourceDate: sourceDate, TargetDate: targetDate}
	return c.do(ctx, http.MethodPost, "/api/tasks/batch/punt", in, nil)
}

func (c *Client) BatchFail(ctx context.Context, ids []model.TaskID) error {
	in := struct {
		TaskIDs []string `json:"taskIds"`
	}{TaskIDs: idStrings(ids)}
	return c.do(ctx, http.MethodPost, "/api/tasks/batch/fail", in, nil)
}

func (c *Client) BatchGraveyard(ctx context.Context, ids []model.TaskID) error {
	in := struct {
		TaskIDs []string `json:"taskIds"`
	}{TaskIDs: idStrings(ids)}
	return c.do(ctx, http.MethodPost, "/api/tasks/batch/graveyard", in, nil)
}

func idStrings(ids []model.TaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
