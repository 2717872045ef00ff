package fcclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"earnframe/internal/model"
	"earnframe/internal/util"
)

// WieldClient queries the Wield reactions API, which filters by fid server side.
type WieldClient struct {
	baseURL   string
	apiKey    string
	transport *Transport
}

func NewWieldClient(baseURL, apiKey string, opts Options) *WieldClient {
	return &WieldClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		transport: NewTransport("wield", opts),
	}
}

func (c *WieldClient) Name() string { return c.transport.Name() }

// Reactions reports whether fid liked or recasted castHash. Non-2xx statuses
// and undecodable bodies are returned as errors; a body without reaction
// lists yields model.ErrNoReactionLists.
func (c *WieldClient) Reactions(ctx context.Context, castHash string, fid model.FID, limit int) (model.Reactions, error) {
	q := url.Values{}
	q.Set("castHash", castHash)
	q.Set("fid", fid.String())
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/reactions?"+q.Encode(), nil)
	if err != nil {
		return model.Reactions{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.transport.Call(ctx, req)
	if err != nil {
		return model.Reactions{}, err
	}
	if !res.OK() {
		return model.Reactions{}, &StatusError{Provider: c.Name(), Status: res.Status, Body: snippet(res.Body)}
	}
	out, err := normalize(res.Body, fid, true)
	if err != nil && !errors.Is(err, model.ErrNoReactionLists) {
		return model.Reactions{}, fmt.Errorf("wield: decode reactions: %w", err)
	}
	return out, err
}

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api responded with status %d", e.Provider, e.Status)
}

func snippet(b []byte) string { return util.Snippet(b, 512) }
