package frame

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"earnframe/internal/logging"
	"earnframe/internal/model"
)

const maxActionBytes = 64 << 10

// Action is the body a frame client posts when a button is pressed.
type Action struct {
	UntrustedData struct {
		FID         model.FID `json:"fid"`
		URL         string    `json:"url"`
		MessageHash string    `json:"messageHash"`
		Timestamp   int64     `json:"timestamp"`
		Network     int       `json:"network"`
		ButtonIndex int       `json:"buttonIndex"`
		CastID      struct {
			FID  model.FID `json:"fid"`
			Hash string    `json:"hash"`
		} `json:"castId"`
	} `json:"untrustedData"`
	TrustedData struct {
		MessageBytes string `json:"messageBytes"`
	} `json:"trustedData"`
}

// parseAction reads a frame action from r. GET requests and empty or
// unreadable bodies yield a zero Action.
func parseAction(r *http.Request) Action {
	var a Action
	if r.Method != http.MethodPost || r.Body == nil {
		return a
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes))
	if err != nil || len(strings.TrimSpace(string(b))) == 0 {
		return a
	}
	if err := json.Unmarshal(b, &a); err != nil {
		logging.Warn("frame_action_invalid", map[string]any{"error": err})
		return Action{}
	}
	return a
}

// identify resolves who pressed the button. A verified interactor wins over
// the untrusted fid; the query parameter is the last resort.
func (c *Controller) identify(ctx context.Context, r *http.Request) (model.FID, *model.Interactor) {
	a := parseAction(r)
	fid := a.UntrustedData.FID
	if fid.Empty() {
		fid = model.FID(strings.TrimSpace(r.URL.Query().Get("fid")))
	}
	if c.Validator == nil || a.TrustedData.MessageBytes == "" {
		return fid, nil
	}
	in, err := c.Validator.ValidateAction(ctx, a.TrustedData.MessageBytes)
	if err != nil {
		logging.Warn("frame_action_unverified", map[string]any{"fid": fid.String(), "error": err})
		return fid, nil
	}
	if in.FID.Empty() {
		in.FID = fid
	}
	return in.FID, &in
}
