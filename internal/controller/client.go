package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/joshuamhtsang/sine/internal/channelsvc"
)

// ChannelClient is the Controller's view of the channel service: the
// subset of its wire operations the lifecycle needs to drive.
// [InProcessClient] calls a *channelsvc.Service directly (used by
// cmd/wnetctl when it runs the service in the same process, and by
// tests); [HTTPClient] drives a standalone cmd/channel-server over HTTP.
type ChannelClient interface {
	LoadScene(ctx context.Context, req channelsvc.LoadSceneRequest) error
	RegisterMCSTable(ctx context.Context, name string, req channelsvc.RegisterMCSTableRequest) error
	ComputeSingle(ctx context.Context, req channelsvc.ComputeSingleRequest) (channelsvc.ComputeSingleResponse, error)
	ComputeSINR(ctx context.Context, req channelsvc.ComputeSINRRequest) (channelsvc.ComputeSINRResponse, error)
	IsTransmitting(ctx context.Context, node string) (bool, error)
	UpdateTransmissionState(ctx context.Context, updates map[string]bool) error
}

// InProcessClient adapts a *channelsvc.Service to [ChannelClient] with no
// network hop, for a combined controller+service process or for tests.
type InProcessClient struct {
	Service *channelsvc.Service
}

var _ ChannelClient = InProcessClient{}

func (c InProcessClient) LoadScene(ctx context.Context, req channelsvc.LoadSceneRequest) error {
	return c.Service.LoadScene(req)
}

func (c InProcessClient) RegisterMCSTable(ctx context.Context, name string, req channelsvc.RegisterMCSTableRequest) error {
	return c.Service.RegisterMCSTable(name, req)
}

func (c InProcessClient) ComputeSingle(ctx context.Context, req channelsvc.ComputeSingleRequest) (channelsvc.ComputeSingleResponse, error) {
	return c.Service.ComputeSingle(req)
}

func (c InProcessClient) ComputeSINR(ctx context.Context, req channelsvc.ComputeSINRRequest) (channelsvc.ComputeSINRResponse, error) {
	return c.Service.ComputeSINR(req)
}

func (c InProcessClient) IsTransmitting(ctx context.Context, node string) (bool, error) {
	return c.Service.State.IsActive(node), nil
}

func (c InProcessClient) UpdateTransmissionState(ctx context.Context, updates map[string]bool) error {
	c.Service.State.Update(updates)
	return nil
}

// HTTPClient drives a channel-server instance over HTTP, using the wire
// schema in internal/channelsvc's transport layer.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ ChannelClient = &HTTPClient{}

func (c *HTTPClient) httpDo(ctx context.Context, method, path string, body, out any) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	var reader *bytes.Buffer
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("controller: encoding request for %s: %w", path, err)
		}
		reader = bytes.NewBuffer(buf)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("controller: building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("controller: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp channelsvc.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("controller: %s returned %d: %s", path, resp.StatusCode, errResp.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) LoadScene(ctx context.Context, req channelsvc.LoadSceneRequest) error {
	return c.httpDo(ctx, http.MethodPost, "/scene/load", req, nil)
}

func (c *HTTPClient) RegisterMCSTable(ctx context.Context, name string, req channelsvc.RegisterMCSTableRequest) error {
	return c.httpDo(ctx, http.MethodPost, "/api/mcs-tables/"+name, req, nil)
}

func (c *HTTPClient) ComputeSingle(ctx context.Context, req channelsvc.ComputeSingleRequest) (channelsvc.ComputeSingleResponse, error) {
	var resp channelsvc.ComputeSingleResponse
	err := c.httpDo(ctx, http.MethodPost, "/compute/single", req, &resp)
	return resp, err
}

func (c *HTTPClient) ComputeSINR(ctx context.Context, req channelsvc.ComputeSINRRequest) (channelsvc.ComputeSINRResponse, error) {
	var resp channelsvc.ComputeSINRResponse
	err := c.httpDo(ctx, http.MethodPost, "/compute/sinr", req, &resp)
	return resp, err
}

func (c *HTTPClient) IsTransmitting(ctx context.Context, node string) (bool, error) {
	var resp channelsvc.TransmissionStateResponse
	if err := c.httpDo(ctx, http.MethodGet, "/api/transmission/state", nil, &resp); err != nil {
		return false, err
	}
	// A node absent from the map defaults to "transmitting", matching
	// InProcessClient/TransmissionState.IsActive's default.
	active, ok := resp.State[node]
	if !ok {
		return true, nil
	}
	return active, nil
}

func (c *HTTPClient) UpdateTransmissionState(ctx context.Context, updates map[string]bool) error {
	var resp channelsvc.TransmissionStateResponse
	return c.httpDo(ctx, http.MethodPost, "/api/transmission/state", channelsvc.UpdateTransmissionStateRequest{Updates: updates}, &resp)
}
