package fcclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"earnframe/internal/model"
)

func testOptions(ts *httptest.Server) Options {
	return Options{Timeout: time.Second, MaxAttempts: 1, RPS: 1000, Burst: 100, HTTPClient: ts.Client()}
}

func TestWieldReactionsQueryAndHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/reactions" {
			t.Errorf("path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("castHash") != "0xeb809faa" || q.Get("fid") != "12345" || q.Get("limit") != "50" {
			t.Errorf("query %v", q)
		}
		if r.Header.Get("x-api-key") != "wk" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"likes":[{"reactor":{"fid":12345}}],"recasts":[]}`))
	}))
	defer ts.Close()

	c := NewWieldClient(ts.URL+"/", "wk", testOptions(ts))
	got, err := c.Reactions(context.Background(), "0xeb809faa", "12345", 50)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Liked || got.Recasted {
		t.Fatalf("unexpected reactions %+v", got)
	}
}

func TestWieldScopedEntriesWithoutIdentity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"likes":[{"hash":"0x1"}],"recasts":null}`))
	}))
	defer ts.Close()

	got, err := NewWieldClient(ts.URL, "wk", testOptions(ts)).Reactions(context.Background(), "0x1", "7", 50)
	if err != nil || !got.Liked {
		t.Fatalf("expected liked, got %+v %v", got, err)
	}
}

func TestWieldMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer ts.Close()

	_, err := NewWieldClient(ts.URL, "wk", testOptions(ts)).Reactions(context.Background(), "0x1", "7", 50)
	if !errors.Is(err, model.ErrNoReactionLists) {
		t.Fatalf("expected ErrNoReactionLists, got %v", err)
	}
}

func TestWieldStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := NewWieldClient(ts.URL, "wk", testOptions(ts)).Reactions(context.Background(), "0x1", "7", 50)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNeynarReactionsMatchesIdentity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("types") != "likes,recasts" || r.Header.Get("api_key") != "nk" {
			t.Errorf("bad request %v %v", r.URL.Query(), r.Header)
		}
		_, _ = w.Write([]byte(`{"likes":[{"reactor":{"fid":1}}],"recasts":[{"recaster":{"fid":"99999"}}]}`))
	}))
	defer ts.Close()

	got, err := NewNeynarClient(ts.URL, "nk", testOptions(ts)).Reactions(context.Background(), "0x1", "99999", 50)
	if err != nil {
		t.Fatal(err)
	}
	if got.Liked || !got.Recasted {
		t.Fatalf("unexpected reactions %+v", got)
	}
}

func TestNeynarReactionsListShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reactions":[{"reaction_type":"like","user":{"fid":5}},{"reaction_type":"recast","user":{"fid":6}}]}`))
	}))
	defer ts.Close()

	got, err := NewNeynarClient(ts.URL, "nk", testOptions(ts)).Reactions(context.Background(), "0x1", "5", 50)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Liked || got.Recasted {
		t.Fatalf("unexpected reactions %+v", got)
	}
}

func TestNeynarValidateAction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || !strings.Contains(string(b), `"message_bytes_in_hex":"0a0b"`) {
			t.Errorf("bad validate request %s %s", r.Method, b)
		}
		_, _ = w.Write([]byte(`{"valid":true,"action":{"interactor":{"fid":42,"display_name":"Alice","pfp_url":"https://img/a.png"}}}`))
	}))
	defer ts.Close()

	in, err := NewNeynarClient(ts.URL, "nk", testOptions(ts)).ValidateAction(context.Background(), "0a0b")
	if err != nil {
		t.Fatal(err)
	}
	if in.FID != "42" || in.DisplayName != "Alice" || in.PfpURL != "https://img/a.png" {
		t.Fatalf("unexpected interactor %+v", in)
	}
}

func TestNeynarValidateActionInvalid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":false}`))
	}))
	defer ts.Close()

	_, err := NewNeynarClient(ts.URL, "nk", testOptions(ts)).ValidateAction(context.Background(), "00")
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestReactionAcceptsBareIdentity(t *testing.T) {
	got, err := normalize([]byte(`{"likes":["12345"],"recasts":[]}`), "12345", false)
	if err != nil || !got.Liked {
		t.Fatalf("expected liked, got %+v %v", got, err)
	}
}
