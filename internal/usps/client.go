// Package usps implements [address.Verifier] on top of the USPS Addresses v3
// API.
//
// Every lookup exchanges the configured client credentials for a fresh OAuth
// access token and then queries the address endpoint. The client never
// surfaces a Go error: transport, authentication and server failures all
// become an unmatched [address.Outcome] with a fixed reason, so the verdict
// engine only ever sees outcomes.
package usps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/MrWong99/toolbox/internal/address"
	"github.com/MrWong99/toolbox/internal/observe"
	"github.com/MrWong99/toolbox/internal/upstream"
)

// Reasons attached to unmatched outcomes that did not come from USPS itself.
const (
	ReasonUnavailable   = "address verification service is unavailable"
	ReasonNotConfigured = "address verification is not configured"
)

// DefaultBaseURL is the production USPS API host.
const DefaultBaseURL = "https://apis.usps.com"

const (
	tokenPath   = "/oauth2/v3/token"
	addressPath = "/addresses/v3/address"
)

// ErrNotConfigured is returned by [Client.Check] when no client credentials
// were provided.
var ErrNotConfigured = errors.New("usps: client credentials are not configured")

// Client verifies addresses against USPS. Safe for concurrent use.
type Client struct {
	api          *upstream.Client
	clientID     string
	clientSecret string
}

var _ address.Verifier = (*Client)(nil)

// New returns a Client that talks to USPS through api. Empty credentials are
// accepted; such a client answers every lookup with [ReasonNotConfigured].
func New(api *upstream.Client, clientID, clientSecret string) *Client {
	return &Client{
		api:          api,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Configured reports whether both client credentials are set.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Check is a readiness probe. It fails when credentials are missing or the
// upstream circuit breaker is open.
func (c *Client) Check(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.api.Check(ctx)
}

// Verify looks up addr and translates the USPS reply into an outcome.
func (c *Client) Verify(ctx context.Context, addr address.SubmittedAddress) address.Outcome {
	if !c.Configured() {
		return address.Unmatched(ReasonNotConfigured)
	}

	token, err := c.token(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("usps: token exchange failed", "err", err)
		return address.Unmatched(ReasonUnavailable)
	}

	outcome, err := c.lookup(ctx, token, addr)
	if err != nil {
		observe.Logger(ctx).Warn("usps: address lookup failed", "err", err)
		return address.Unmatched(ReasonUnavailable)
	}
	return outcome
}

// ─── wire types ──────────────────────────────────────────────────────────────

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type addressResponse struct {
	Address struct {
		StreetAddress string `json:"streetAddress"`
		City          string `json:"city"`
		State         string `json:"state"`
		ZIPCode       string `json:"ZIPCode"`
		ZIPPlus4      string `json:"ZIPPlus4"`
	} `json:"address"`
	AdditionalInfo struct {
		DPVConfirmation string `json:"DPVConfirmation"`
	} `json:"additionalInfo"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Status string `json:"status"`
			Code   string `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	} `json:"error"`
}

// message returns the most specific human-readable text in the envelope.
func (e errorEnvelope) message() string {
	if m := strings.TrimSpace(e.Error.Message); m != "" {
		return m
	}
	for _, sub := range e.Error.Errors {
		if t := strings.TrimSpace(sub.Title); t != "" {
			return t
		}
		if d := strings.TrimSpace(sub.Detail); d != "" {
			return d
		}
	}
	return ""
}

// ─── calls ───────────────────────────────────────────────────────────────────

func (c *Client) token(ctx context.Context) (string, error) {
	resp, err := c.api.Do(ctx, "token", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetBody(tokenRequest{
				GrantType:    "client_credentials",
				ClientID:     c.clientID,
				ClientSecret: c.clientSecret,
			}).
			Post(tokenPath)
	})
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Bytes(), &tr); err != nil {
		return "", fmt.Errorf("usps: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("usps: token response has no access_token")
	}
	return tr.AccessToken, nil
}

func (c *Client) lookup(ctx context.Context, token string, addr address.SubmittedAddress) (address.Outcome, error) {
	params := map[string]string{
		"streetAddress": addr.Street,
		"city":          addr.City,
		"state":         addr.State,
	}
	if addr.Zip != "" {
		params["ZIPCode"] = addr.Zip
	}

	resp, err := c.api.Do(ctx, "address", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetHeader("Authorization", "Bearer "+token).
			SetHeader("Accept", "application/json").
			SetQueryParams(params).
			Get(addressPath)
	})
	if err != nil {
		return rejected(err)
	}

	var ar addressResponse
	if err := json.Unmarshal(resp.Bytes(), &ar); err != nil {
		return address.Outcome{}, fmt.Errorf("usps: decode address response: %w", err)
	}
	if strings.TrimSpace(ar.Address.StreetAddress) == "" {
		return address.Unmatched(""), nil
	}

	return address.Matched(address.VerifiedAddress{
		Street: ar.Address.StreetAddress,
		City:   ar.Address.City,
		State:  ar.Address.State,
		Zip:    ar.Address.ZIPCode,
		Zip4:   ar.Address.ZIPPlus4,
	}, address.ParseConfirmationCode(ar.AdditionalInfo.DPVConfirmation)), nil
}

// rejected turns a failed lookup into an outcome. Only client errors other
// than authentication failures are USPS's verdict on the address itself.
func rejected(err error) (address.Outcome, error) {
	var se *upstream.StatusError
	if !errors.As(err, &se) || !errors.Is(err, upstream.ErrClientError) {
		return address.Outcome{}, err
	}
	if se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden {
		return address.Outcome{}, err
	}

	var env errorEnvelope
	if jsonErr := json.Unmarshal(se.Body, &env); jsonErr != nil {
		return address.Unmatched(""), nil
	}
	return address.Unmatched(env.message()), nil
}
