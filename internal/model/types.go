package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoReactionLists marks a provider answer that carried neither a likes nor
// a recasts list. It is a well-formed "no interaction", not a transport failure.
var ErrNoReactionLists = errors.New("response has no likes or recasts")

// FID is a Farcaster account id. Upstream APIs send it either as a JSON number
// or as a string, so it is carried as its decimal string form.
type FID string

// UnmarshalJSON accepts 123, "123" and null.
func (f *FID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("fid: %w", err)
	}
	*f = FID(n.String())
	return nil
}

func (f FID) String() string { return string(f) }

// Empty reports whether no identity is present.
func (f FID) Empty() bool { return strings.TrimSpace(string(f)) == "" }

// Reactions is the normalized answer of a reaction provider for one identity.
type Reactions struct {
	Liked    bool
	Recasted bool
}

// EarningsInfo is the per-request earnings snapshot for one identity.
// Optional fields are nil when upstream had no value.
type EarningsInfo struct {
	ProfileName      *string
	ProfileImage     *string
	TodayEarnings    string
	LifetimeEarnings string
	FarScore         *float64
}

// Interactor is the user who pressed a frame button.
type Interactor struct {
	FID         FID
	DisplayName string
	PfpURL      string
}
