// Package frame serves the earnings frame: a landing view and a check view
// that gates the stats behind an engagement check.
package frame

import (
	"context"
	"fmt"
	"strings"

	"earnframe/internal/logging"
	"earnframe/internal/model"
	"earnframe/internal/observe"
	"earnframe/internal/render"
)

// Verifier decides whether fid engaged with the reference cast.
type Verifier interface {
	Verify(ctx context.Context, fid model.FID) bool
}

// EarningsSource looks up the earnings snapshot of fid.
type EarningsSource interface {
	Fetch(ctx context.Context, fid model.FID) (model.EarningsInfo, error)
}

// ActionValidator verifies signed frame actions.
type ActionValidator interface {
	ValidateAction(ctx context.Context, messageBytesHex string) (model.Interactor, error)
}

// Button is one frame action button.
type Button struct {
	Label  string
	Target string
}

// Frame is one frame response: an image plus buttons.
type Frame struct {
	Card render.Card
	// ImageURL overrides the rendered card when set.
	ImageURL string
	Buttons  []Button
}

type Settings struct {
	PublicURL       string
	BasePath        string
	Title           string
	TokenSymbol     string
	LandingImageURL string
	// RequireBoth words the prompt for the "all" engagement policy.
	RequireBoth bool
}

type Controller struct {
	Verifier  Verifier
	Earnings  EarningsSource
	Validator ActionValidator
	Images    *render.Renderer
	Cards     *render.Signer
	Settings  Settings
	Observer  observe.Observer
}

func (c *Controller) base() string  { return strings.TrimRight(c.Settings.BasePath, "/") }
func (c *Controller) home() string  { return c.base() + "/" }
func (c *Controller) check() string { return c.base() + "/check" }

// Landing is the initial frame.
func (c *Controller) Landing() Frame {
	return Frame{
		Card:     landingCard(c.Settings.Title, c.Settings.TokenSymbol),
		ImageURL: c.Settings.LandingImageURL,
		Buttons:  []Button{{Label: "Check stats", Target: c.check()}},
	}
}

// Check answers a "Check stats" click. A missing identity short-circuits
// before any upstream call.
func (c *Controller) Check(ctx context.Context, fid model.FID, in *model.Interactor) (f Frame) {
	if fid.Empty() {
		logging.Warn("check_missing_fid", nil)
		return Frame{Card: missingFIDCard(), Buttons: []Button{{Label: "Back", Target: c.home()}}}
	}
	if !c.Verifier.Verify(ctx, fid) {
		return Frame{
			Card:    promptCard(c.Settings.TokenSymbol, c.Settings.RequireBoth),
			Buttons: []Button{{Label: "Back", Target: c.home()}, {Label: "Check again", Target: c.check()}},
		}
	}

	var info *model.EarningsInfo
	got, fetchErr := c.Earnings.Fetch(ctx, fid)
	if fetchErr == nil {
		info = &got
	}

	defer func() {
		if r := recover(); r != nil {
			f = c.RenderError(fmt.Errorf("%v", r))
		}
	}()
	card, err := resultCard(fid, in, info, fetchErr, c.Settings.TokenSymbol)
	if err != nil {
		return c.RenderError(err)
	}
	return Frame{
		Card:    card,
		Buttons: []Button{{Label: "Back", Target: c.home()}, {Label: "Refresh", Target: c.check()}},
	}
}

// RenderError is the last-resort frame for failures while assembling output.
func (c *Controller) RenderError(err error) Frame {
	observe.OrNop(c.Observer).RenderFailed()
	logging.Error("render_failed", map[string]any{"error": err})
	return Frame{
		Card:    renderErrorCard(err),
		Buttons: []Button{{Label: "Back", Target: c.home()}, {Label: "Retry", Target: c.check()}},
	}
}
