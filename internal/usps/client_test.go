package usps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/toolbox/internal/address"
	"github.com/MrWong99/toolbox/internal/upstream"
)

// fakeUSPS is a scripted USPS API. Zero status fields mean 200.
type fakeUSPS struct {
	tokenStatus   int
	tokenBody     string
	addressStatus int
	addressBody   string

	tokenCalls   atomic.Int32
	addressCalls atomic.Int32
	lastQuery    atomic.Value // url.Values
	lastAuth     atomic.Value // string
	lastGrant    atomic.Value // tokenRequest
}

func (f *fakeUSPS) serve(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/v3/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		var req tokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastGrant.Store(req)
		write(w, f.tokenStatus, f.tokenBody)
	})
	mux.HandleFunc("GET /addresses/v3/address", func(w http.ResponseWriter, r *http.Request) {
		f.addressCalls.Add(1)
		f.lastQuery.Store(r.URL.Query())
		f.lastAuth.Store(r.Header.Get("Authorization"))
		write(w, f.addressStatus, f.addressBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func write(w http.ResponseWriter, status int, body string) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newClient(t *testing.T, baseURL, id, secret string) *Client {
	t.Helper()
	api := upstream.New(upstream.Config{
		Name:    "usps",
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Breaker: upstream.BreakerConfig{ConsecutiveFailures: 100},
	}, nil)
	t.Cleanup(func() { _ = api.Close() })
	return New(api, id, secret)
}

var springfield = address.SubmittedAddress{
	Street: "123 Main St",
	City:   "Springfield",
	State:  "IL",
	Zip:    "62704",
}

const okToken = `{"access_token":"tok-123","token_type":"Bearer","expires_in":28799}`

func TestVerify_Matched(t *testing.T) {
	t.Parallel()
	f := &fakeUSPS{
		tokenBody: okToken,
		addressBody: `{
			"firm": null,
			"address": {
				"streetAddress": "123 MAIN ST",
				"city": "SPRINGFIELD",
				"state": "IL",
				"ZIPCode": "62704",
				"ZIPPlus4": "1234"
			},
			"additionalInfo": {"DPVConfirmation": "Y"}
		}`,
	}
	c := newClient(t, f.serve(t).URL, "id", "secret")

	out := c.Verify(context.Background(), springfield)

	v, ok := out.Verified()
	if !ok {
		t.Fatalf("outcome unmatched: %q", out.Reason())
	}
	want := address.VerifiedAddress{Street: "123 MAIN ST", City: "SPRINGFIELD", State: "IL", Zip: "62704", Zip4: "1234"}
	if v != want {
		t.Errorf("verified = %+v, want %+v", v, want)
	}
	if out.Code() != address.CodeConfirmed {
		t.Errorf("code = %v, want confirmed", out.Code())
	}

	if got := f.lastAuth.Load().(string); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q", got)
	}
	grant := f.lastGrant.Load().(tokenRequest)
	if grant.GrantType != "client_credentials" || grant.ClientID != "id" || grant.ClientSecret != "secret" {
		t.Errorf("token request = %+v", grant)
	}
}

func TestVerify_QueryParameters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		addr    address.SubmittedAddress
		wantZip string
	}{
		{"with zip", springfield, "62704"},
		{"without zip", address.SubmittedAddress{Street: "1 Elm", City: "Austin", State: "TX"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeUSPS{tokenBody: okToken, addressBody: `{}`}
			c := newClient(t, f.serve(t).URL, "id", "secret")
			c.Verify(context.Background(), tt.addr)

			q := f.lastQuery.Load().(url.Values)
			if got := q.Get("streetAddress"); got != tt.addr.Street {
				t.Errorf("streetAddress = %q, want %q", got, tt.addr.Street)
			}
			if got := q.Get("city"); got != tt.addr.City {
				t.Errorf("city = %q, want %q", got, tt.addr.City)
			}
			if got := q.Get("state"); got != tt.addr.State {
				t.Errorf("state = %q, want %q", got, tt.addr.State)
			}
			if got := q.Get("ZIPCode"); got != tt.wantZip {
				t.Errorf("ZIPCode = %q, want %q", got, tt.wantZip)
			}
		})
	}
}

func TestVerify_Translation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		fake        *fakeUSPS
		wantMatched bool
		wantCode    address.ConfirmationCode
		wantReason  string
	}{
		{
			name: "secondary missing",
			fake: &fakeUSPS{tokenBody: okToken, addressBody: `{"address":{"streetAddress":"123 MAIN ST","city":"SPRINGFIELD","state":"IL","ZIPCode":"62704","ZIPPlus4":"1234"},"additionalInfo":{"DPVConfirmation":"D"}}`},
			wantMatched: true,
			wantCode:    address.CodeSecondaryMissing,
		},
		{
			name: "unknown dpv code",
			fake: &fakeUSPS{tokenBody: okToken, addressBody: `{"address":{"streetAddress":"123 MAIN ST"},"additionalInfo":{"DPVConfirmation":"N"}}`},
			wantMatched: true,
			wantCode:    address.CodeNoMatch,
		},
		{
			name:       "empty result",
			fake:       &fakeUSPS{tokenBody: okToken, addressBody: `{"address":{}}`},
			wantReason: "",
		},
		{
			name: "4xx with message",
			fake: &fakeUSPS{tokenBody: okToken, addressStatus: 404,
				addressBody: `{"apiVersion":"v3","error":{"code":"404","message":"Address Not Found.","errors":[]}}`},
			wantReason: "Address Not Found.",
		},
		{
			name: "4xx with title only",
			fake: &fakeUSPS{tokenBody: okToken, addressStatus: 400,
				addressBody: `{"error":{"code":"400","errors":[{"status":"400","code":"010005","title":"Invalid State Code.","detail":"state must be two letters"}]}}`},
			wantReason: "Invalid State Code.",
		},
		{
			name: "4xx with detail only",
			fake: &fakeUSPS{tokenBody: okToken, addressStatus: 400,
				addressBody: `{"error":{"errors":[{"detail":"city is required"}]}}`},
			wantReason: "city is required",
		},
		{
			name:       "4xx without envelope",
			fake:       &fakeUSPS{tokenBody: okToken, addressStatus: 400, addressBody: `not json`},
			wantReason: "",
		},
		{
			name:       "lookup 5xx",
			fake:       &fakeUSPS{tokenBody: okToken, addressStatus: 503, addressBody: `{}`},
			wantReason: ReasonUnavailable,
		},
		{
			name:       "lookup unauthorized",
			fake:       &fakeUSPS{tokenBody: okToken, addressStatus: 401, addressBody: `{"error":{"message":"Unauthorized"}}`},
			wantReason: ReasonUnavailable,
		},
		{
			name:       "token rejected",
			fake:       &fakeUSPS{tokenStatus: 401, tokenBody: `{"error":"invalid_client"}`},
			wantReason: ReasonUnavailable,
		},
		{
			name:       "token without access_token",
			fake:       &fakeUSPS{tokenBody: `{}`},
			wantReason: ReasonUnavailable,
		},
		{
			name:       "malformed lookup body",
			fake:       &fakeUSPS{tokenBody: okToken, addressBody: `{"address":`},
			wantReason: ReasonUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newClient(t, tt.fake.serve(t).URL, "id", "secret")
			out := c.Verify(context.Background(), springfield)

			if out.IsMatched() != tt.wantMatched {
				t.Fatalf("IsMatched = %v, want %v (reason %q)", out.IsMatched(), tt.wantMatched, out.Reason())
			}
			if tt.wantMatched {
				if out.Code() != tt.wantCode {
					t.Errorf("code = %v, want %v", out.Code(), tt.wantCode)
				}
				return
			}
			if out.Reason() != tt.wantReason {
				t.Errorf("reason = %q, want %q", out.Reason(), tt.wantReason)
			}
		})
	}
}

func TestVerify_TokenFailureSkipsLookup(t *testing.T) {
	t.Parallel()
	f := &fakeUSPS{tokenStatus: 500}
	c := newClient(t, f.serve(t).URL, "id", "secret")
	c.Verify(context.Background(), springfield)

	if f.addressCalls.Load() != 0 {
		t.Errorf("address calls = %d, want 0", f.addressCalls.Load())
	}
}

func TestVerify_FreshTokenPerLookup(t *testing.T) {
	t.Parallel()
	f := &fakeUSPS{tokenBody: okToken, addressBody: `{}`}
	c := newClient(t, f.serve(t).URL, "id", "secret")
	for range 3 {
		c.Verify(context.Background(), springfield)
	}
	if got := f.tokenCalls.Load(); got != 3 {
		t.Errorf("token calls = %d, want 3", got)
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	t.Parallel()
	tests := []struct{ id, secret string }{
		{"", ""},
		{"id", ""},
		{"", "secret"},
	}
	for _, tt := range tests {
		f := &fakeUSPS{tokenBody: okToken}
		c := newClient(t, f.serve(t).URL, tt.id, tt.secret)

		out := c.Verify(context.Background(), springfield)
		if out.Reason() != ReasonNotConfigured {
			t.Errorf("id=%q secret=%q: reason = %q", tt.id, tt.secret, out.Reason())
		}
		if f.tokenCalls.Load() != 0 {
			t.Error("unconfigured client must not call USPS")
		}
		if err := c.Check(context.Background()); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Check = %v, want ErrNotConfigured", err)
		}
	}
}

func TestCheck_Configured(t *testing.T) {
	t.Parallel()
	c := newClient(t, "http://127.0.0.1:0", "id", "secret")
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check = %v, want nil", err)
	}
}

func TestVerify_EndToEndVerdict(t *testing.T) {
	t.Parallel()
	f := &fakeUSPS{
		tokenBody:   okToken,
		addressBody: `{"address":{"streetAddress":"123 MAIN ST","city":"Springfield","state":"IL","ZIPCode":"62704","ZIPPlus4":"1234"},"additionalInfo":{"DPVConfirmation":"D"}}`,
	}
	c := newClient(t, f.serve(t).URL, "id", "secret")

	got := address.Evaluate(springfield, c.Verify(context.Background(), springfield)).Message()
	want := "Address could be more accurate. Suggested address: 123 MAIN ST, Springfield, IL 62704-1234"
	if got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}
