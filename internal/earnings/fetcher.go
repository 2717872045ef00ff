// Package earnings reads a user's reward-token earnings and social profile
// from the Airstack GraphQL API in one round trip.
package earnings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"earnframe/internal/fcclient"
	"earnframe/internal/logging"
	"earnframe/internal/model"
	"earnframe/internal/observe"
	"earnframe/internal/util"
)

// Query fetches the profile, today's and lifetime earnings for $fid in a single
// snapshot.
const Query = `query MoxieEarnings($fid: String!) {
  socialInfo: Socials(
    input: {filter: {dappName: {_eq: farcaster}, userId: {_eq: $fid}}, blockchain: ethereum}
  ) {
    Social {
      profileName
      profileImage
      farcasterScore {
        farScore
      }
    }
  }
  todayEarnings: FarcasterMoxieEarningStats(
    input: {timeframe: TODAY, blockchain: ALL, filter: {entityType: {_eq: USER}, entityId: {_eq: $fid}}}
  ) {
    FarcasterMoxieEarningStat {
      allEarningsAmount
    }
  }
  lifetimeEarnings: FarcasterMoxieEarningStats(
    input: {timeframe: LIFETIME, blockchain: ALL, filter: {entityType: {_eq: USER}, entityId: {_eq: $fid}}}
  ) {
    FarcasterMoxieEarningStat {
      allEarningsAmount
    }
  }
}`

// Fetcher is the Airstack-backed earnings lookup.
type Fetcher struct {
	url       string
	apiKey    string
	transport *fcclient.Transport
	Observer  observe.Observer
}

func NewFetcher(url, apiKey string, opts fcclient.Options) *Fetcher {
	return &Fetcher{url: url, apiKey: apiKey, transport: fcclient.NewTransport("airstack", opts)}
}

// Fetch returns the earnings snapshot for fid. Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, fid model.FID) (model.EarningsInfo, error) {
	info, err := f.fetch(ctx, fid)
	observe.OrNop(f.Observer).EarningsFetched(err)
	if err != nil {
		logging.Error("earnings_fetch_failed", map[string]any{"fid": fid.String(), "error": err})
		return model.EarningsInfo{}, err
	}
	return info, nil
}

func (f *Fetcher) fetch(ctx context.Context, fid model.FID) (model.EarningsInfo, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     Query,
		"variables": map[string]string{"fid": fid.String()},
	})
	if err != nil {
		return model.EarningsInfo{}, &FetchError{Kind: KindTransport, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return model.EarningsInfo{}, &FetchError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.apiKey)

	res, err := f.transport.Call(ctx, req)
	if err != nil {
		return model.EarningsInfo{}, &FetchError{Kind: KindTransport, Err: err}
	}
	if !res.OK() {
		return model.EarningsInfo{}, &FetchError{Kind: KindStatus, Status: res.Status, Body: util.Snippet(res.Body, 512)}
	}
	var r response
	if err := json.Unmarshal(res.Body, &r); err != nil {
		return model.EarningsInfo{}, &FetchError{Kind: KindDecode, Status: res.Status, Err: err}
	}
	if len(r.Errors) > 0 {
		return model.EarningsInfo{}, &FetchError{Kind: KindQuery, Status: res.Status, Errors: r.Errors}
	}
	return r.info(), nil
}

type response struct {
	Data struct {
		SocialInfo *struct {
			Social []social `json:"Social"`
		} `json:"socialInfo"`
		TodayEarnings    *earningStats `json:"todayEarnings"`
		LifetimeEarnings *earningStats `json:"lifetimeEarnings"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

type social struct {
	ProfileName    *string `json:"profileName"`
	ProfileImage   *string `json:"profileImage"`
	FarcasterScore *struct {
		FarScore *float64 `json:"farScore"`
	} `json:"farcasterScore"`
}

type earningStats struct {
	Stats []struct {
		AllEarningsAmount amount `json:"allEarningsAmount"`
	} `json:"FarcasterMoxieEarningStat"`
}

func (s *earningStats) first() string {
	if s == nil || len(s.Stats) == 0 || s.Stats[0].AllEarningsAmount == "" {
		return "0"
	}
	return string(s.Stats[0].AllEarningsAmount)
}

func (r response) info() model.EarningsInfo {
	out := model.EarningsInfo{
		TodayEarnings:    r.Data.TodayEarnings.first(),
		LifetimeEarnings: r.Data.LifetimeEarnings.first(),
	}
	if r.Data.SocialInfo != nil && len(r.Data.SocialInfo.Social) > 0 {
		s := r.Data.SocialInfo.Social[0]
		out.ProfileName = nonEmpty(s.ProfileName)
		out.ProfileImage = nonEmpty(s.ProfileImage)
		if s.FarcasterScore != nil {
			out.FarScore = s.FarcasterScore.FarScore
		}
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// amount keeps a JSON number or string as its decimal text.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = amount(n.String())
	return nil
}
