package fcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"earnframe/internal/model"
)

var ErrInvalidAction = errors.New("frame action signature is not valid")

// NeynarClient covers the two Neynar endpoints the frame needs: reactions on a
// cast and frame action validation.
type NeynarClient struct {
	baseURL   string
	apiKey    string
	transport *Transport
}

func NewNeynarClient(baseURL, apiKey string, opts Options) *NeynarClient {
	return &NeynarClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		transport: NewTransport("neynar", opts),
	}
}

func (c *NeynarClient) Name() string { return c.transport.Name() }

// Reactions scans the first limit likes and recasts of castHash for fid.
func (c *NeynarClient) Reactions(ctx context.Context, castHash string, fid model.FID, limit int) (model.Reactions, error) {
	q := url.Values{}
	q.Set("hash", castHash)
	q.Set("types", "likes,recasts")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/farcaster/reactions/cast?"+q.Encode(), nil)
	if err != nil {
		return model.Reactions{}, err
	}
	c.auth(req)
	res, err := c.transport.Call(ctx, req)
	if err != nil {
		return model.Reactions{}, err
	}
	if !res.OK() {
		return model.Reactions{}, &StatusError{Provider: c.Name(), Status: res.Status, Body: snippet(res.Body)}
	}
	out, err := normalize(res.Body, fid, false)
	if err != nil && !errors.Is(err, model.ErrNoReactionLists) {
		return model.Reactions{}, fmt.Errorf("neynar: decode reactions: %w", err)
	}
	return out, err
}

// ValidateAction verifies signed frame action bytes and returns the interactor.
func (c *NeynarClient) ValidateAction(ctx context.Context, messageBytesHex string) (model.Interactor, error) {
	var out model.Interactor
	payload, err := json.Marshal(map[string]any{"message_bytes_in_hex": messageBytesHex})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/farcaster/frame/validate", bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.transport.Call(ctx, req)
	if err != nil {
		return out, err
	}
	if !res.OK() {
		return out, &StatusError{Provider: c.Name(), Status: res.Status, Body: snippet(res.Body)}
	}
	var raw struct {
		Valid  bool `json:"valid"`
		Action struct {
			Interactor struct {
				FID         model.FID `json:"fid"`
				DisplayName string    `json:"display_name"`
				PfpURL      string    `json:"pfp_url"`
			} `json:"interactor"`
		} `json:"action"`
	}
	if err := json.Unmarshal(res.Body, &raw); err != nil {
		return out, fmt.Errorf("neynar: decode validation: %w", err)
	}
	if !raw.Valid || raw.Action.Interactor.FID.Empty() {
		return out, ErrInvalidAction
	}
	out = model.Interactor{
		FID:         raw.Action.Interactor.FID,
		DisplayName: raw.Action.Interactor.DisplayName,
		PfpURL:      raw.Action.Interactor.PfpURL,
	}
	return out, nil
}

func (c *NeynarClient) auth(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api_key", c.apiKey)
}
