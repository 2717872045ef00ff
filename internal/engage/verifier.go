package engage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"earnframe/internal/logging"
	"earnframe/internal/model"
	"earnframe/internal/observe"
)

// Policy combines the liked and recasted signals.
type Policy int

const (
	// Any passes when the user liked or recasted.
	Any Policy = iota
	// All passes only when the user liked and recasted.
	All
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return Any, nil
	case "all":
		return All, nil
	}
	return Any, fmt.Errorf("unknown engagement policy %q", s)
}

func (p Policy) String() string {
	if p == All {
		return "all"
	}
	return "any"
}

func (p Policy) Apply(r model.Reactions) bool {
	if p == All {
		return r.Liked && r.Recasted
	}
	return r.Liked || r.Recasted
}

// ReactionSource looks up the reactions of one account on a cast.
type ReactionSource interface {
	Name() string
	Reactions(ctx context.Context, castHash string, fid model.FID, limit int) (model.Reactions, error)
}

// Verifier decides whether an account engaged with the reference cast.
type Verifier struct {
	Primary   ReactionSource
	Secondary ReactionSource
	CastHash  string
	// Limit caps reactions per type; reactions beyond it are not inspected.
	Limit    int
	Policy   Policy
	Observer observe.Observer
}

// Verify never fails: a primary transport failure falls back to the secondary
// source and a secondary failure means "not engaged". A primary answer
// without reaction lists is final and also means "not engaged".
func (v *Verifier) Verify(ctx context.Context, fid model.FID) (engaged bool) {
	obs := observe.OrNop(v.Observer)
	defer func() {
		if r := recover(); r != nil {
			logging.Error("engagement_check_panic", map[string]any{"fid": fid.String(), "panic": fmt.Sprint(r)})
			engaged = false
		}
		obs.EngagementChecked(engaged)
	}()

	reactions, err := v.Primary.Reactions(ctx, v.CastHash, fid, v.Limit)
	switch {
	case err == nil:
		obs.ProviderResult(v.Primary.Name(), true)
		return v.decide(fid, v.Primary.Name(), reactions)
	case errors.Is(err, model.ErrNoReactionLists):
		obs.ProviderResult(v.Primary.Name(), true)
		logging.Warn("engagement_unexpected_response", map[string]any{"provider": v.Primary.Name(), "fid": fid.String()})
		return false
	}
	obs.ProviderResult(v.Primary.Name(), false)
	logging.Warn("engagement_primary_failed", map[string]any{"provider": v.Primary.Name(), "fid": fid.String(), "error": err})

	if v.Secondary == nil {
		return false
	}
	obs.FallbackInvoked()
	reactions, err = v.Secondary.Reactions(ctx, v.CastHash, fid, v.Limit)
	if err != nil {
		obs.ProviderResult(v.Secondary.Name(), false)
		logging.Error("engagement_secondary_failed", map[string]any{"provider": v.Secondary.Name(), "fid": fid.String(), "error": err})
		return false
	}
	obs.ProviderResult(v.Secondary.Name(), true)
	return v.decide(fid, v.Secondary.Name(), reactions)
}

func (v *Verifier) decide(fid model.FID, provider string, r model.Reactions) bool {
	engaged := v.Policy.Apply(r)
	logging.Debug("engagement_checked", map[string]any{
		"provider": provider, "fid": fid.String(), "liked": r.Liked, "recasted": r.Recasted,
		"policy": v.Policy.String(), "engaged": engaged,
	})
	return engaged
}
