package fcclient

import (
	"bytes"
	"encoding/json"
	"strings"

	"earnframe/internal/model"
)

type account struct {
	FID model.FID `json:"fid"`
}

// reaction is one entry of a likes/recasts/reactions list. Providers identify
// the reacting account in different places; a bare number or string is also
// accepted as the account id.
type reaction struct {
	FID          model.FID `json:"fid"`
	Reactor      *account  `json:"reactor"`
	Recaster     *account  `json:"recaster"`
	User         *account  `json:"user"`
	ReactionType string    `json:"reaction_type"`
}

func (r *reaction) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		*r = reaction{}
		return r.FID.UnmarshalJSON(b)
	}
	type plain reaction
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = reaction(p)
	return nil
}

func (r reaction) accounts() []model.FID {
	var out []model.FID
	if !r.FID.Empty() {
		out = append(out, r.FID)
	}
	for _, a := range []*account{r.Reactor, r.Recaster, r.User} {
		if a != nil && !a.FID.Empty() {
			out = append(out, a.FID)
		}
	}
	return out
}

// attributable reports whether r belongs to fid. Entries without any account
// id only count when the provider already filtered by fid.
func (r reaction) attributable(fid model.FID, scoped bool) bool {
	ids := r.accounts()
	if len(ids) == 0 {
		return scoped
	}
	for _, id := range ids {
		if id == fid {
			return true
		}
	}
	return false
}

type reactionsPayload struct {
	Likes     *[]reaction `json:"likes"`
	Recasts   *[]reaction `json:"recasts"`
	Reactions *[]reaction `json:"reactions"`
}

// normalize folds a provider payload into model.Reactions for fid.
func normalize(body []byte, fid model.FID, scoped bool) (model.Reactions, error) {
	var p reactionsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Reactions{}, err
	}
	if p.Likes == nil && p.Recasts == nil && p.Reactions == nil {
		return model.Reactions{}, model.ErrNoReactionLists
	}
	var out model.Reactions
	if p.Likes != nil {
		out.Liked = anyAttributable(*p.Likes, fid, scoped)
	}
	if p.Recasts != nil {
		out.Recasted = anyAttributable(*p.Recasts, fid, scoped)
	}
	if p.Reactions != nil {
		for _, r := range *p.Reactions {
			if !r.attributable(fid, scoped) {
				continue
			}
			switch strings.ToLower(r.ReactionType) {
			case "like", "likes":
				out.Liked = true
			case "recast", "recasts":
				out.Recasted = true
			}
		}
	}
	return out, nil
}

func anyAttributable(list []reaction, fid model.FID, scoped bool) bool {
	for _, r := range list {
		if r.attributable(fid, scoped) {
			return true
		}
	}
	return false
}
