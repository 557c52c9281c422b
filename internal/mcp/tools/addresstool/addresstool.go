// Package addresstool provides the "validate_address" tool.
//
// The tool hands the caller's address to an [address.Verifier], runs the
// outcome through [address.Evaluate] and returns the verdict message. Every
// verdict, including an invalid one, is a successful tool result; only
// malformed arguments produce a tool error.
package addresstool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/toolbox/internal/address"
	"github.com/MrWong99/toolbox/internal/mcp/tools"
	"github.com/MrWong99/toolbox/internal/observe"
)

// validateArgs is the JSON-decoded input for "validate_address".
type validateArgs struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// submitted checks the arguments and converts them into the engine's input.
func (a validateArgs) submitted() (address.SubmittedAddress, error) {
	var errs []error
	if strings.TrimSpace(a.Street) == "" {
		errs = append(errs, errors.New("street is required"))
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, errors.New("city is required"))
	}
	if strings.TrimSpace(a.State) == "" {
		errs = append(errs, errors.New("state is required"))
	}
	zip := strings.TrimSpace(a.Zip)
	if zip != "" && !isZip5(zip) {
		errs = append(errs, fmt.Errorf("zip %q must be 5 digits", a.Zip))
	}
	if len(errs) > 0 {
		return address.SubmittedAddress{}, fmt.Errorf("addresstool: invalid arguments: %w", errors.Join(errs...))
	}

	return address.SubmittedAddress{
		Street: a.Street,
		City:   strings.TrimSpace(a.City),
		State:  strings.TrimSpace(a.State),
		Zip:    zip,
	}, nil
}

func isZip5(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// validateHandler returns the "validate_address" handler. m may be nil.
func validateHandler(v address.Verifier, m *observe.Metrics) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a validateArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("addresstool: failed to parse arguments: %w", err)
		}
		sub, err := a.submitted()
		if err != nil {
			return "", err
		}

		verdict := address.Evaluate(sub, v.Verify(ctx, sub))
		if m != nil {
			m.RecordVerdict(ctx, verdict.Kind.String())
		}
		observe.Logger(ctx).Debug("address verdict", "verdict", verdict.Kind.String())
		return verdict.Message(), nil
	}
}

// Tools returns the address tools backed by v. m may be nil.
func Tools(v address.Verifier, m *observe.Metrics) []tools.Tool {
	return []tools.Tool{
		{
			Definition: tools.Definition{
				Name: "validate_address",
				Description: "Validate a US postal address with USPS. " +
					"Reports whether the address is valid, suggests a corrected or more " +
					"precise address, or explains why it is invalid.",
				Parameters: tools.ObjectSchema(map[string]any{
					"street": map[string]any{
						"type":        "string",
						"description": "Street line, e.g. \"123 Main St\".",
					},
					"city": map[string]any{
						"type":        "string",
						"description": "City name.",
					},
					"state": map[string]any{
						"type":        "string",
						"description": "Two-letter state code, e.g. \"IL\".",
					},
					"zip": map[string]any{
						"type":        "string",
						"description": "Optional 5-digit ZIP code.",
						"pattern":     "^[0-9]{5}$",
					},
				}, "street", "city", "state"),
				Idempotent: true,
			},
			Handler:     validateHandler(v, m),
			DeclaredP50: 400,
			DeclaredMax: 15000,
		},
	}
}
