// Package address turns an address-verification response into a verdict that
// can be shown to the caller of the validate_address tool.
//
// The package has three parts:
//
//   - The data model: [SubmittedAddress], [VerifiedAddress], [ConfirmationCode]
//     and the [Outcome] sum type produced by a [Verifier].
//   - [Evaluate], a pure classification function mapping a submitted address
//     and an [Outcome] to exactly one [Verdict].
//   - [Verdict.Message], which renders a verdict into the text returned to the
//     MCP client.
//
// Nothing in this package performs I/O. All functions are safe for concurrent
// use.
package address

import "context"

// Verifier looks an address up in an external verification service.
//
// Implementations must never surface transport, authentication or status-code
// failures as Go errors: every failure collapses into an [Unmatched] outcome,
// optionally carrying a human-readable reason.
type Verifier interface {
	Verify(ctx context.Context, addr SubmittedAddress) Outcome
}

// SubmittedAddress is the address as provided by the caller.
type SubmittedAddress struct {
	Street string
	City   string
	State  string

	// Zip is the optional 5-digit ZIP code. Empty when not supplied.
	Zip string
}

// VerifiedAddress is the standardised address returned by the verification
// service for a successful match.
type VerifiedAddress struct {
	Street string
	City   string
	State  string
	Zip    string

	// Zip4 is the 4-digit ZIP+4 extension.
	Zip4 string
}

// ConfirmationCode is the delivery-point-verification signal attached to a
// matched address.
type ConfirmationCode int

const (
	// CodeNoMatch means the match was not confirmed. Every unrecognised code
	// maps here.
	CodeNoMatch ConfirmationCode = iota

	// CodeConfirmed means the address and all secondary information were
	// confirmed.
	CodeConfirmed

	// CodeSecondaryMissing means the primary address was confirmed but the
	// secondary unit information was missing or dropped.
	CodeSecondaryMissing

	// CodeSecondaryInvalid means the primary address was confirmed but the
	// secondary unit information could not be confirmed.
	CodeSecondaryInvalid
)

// String returns the human-readable name of the code.
func (c ConfirmationCode) String() string {
	switch c {
	case CodeConfirmed:
		return "confirmed"
	case CodeSecondaryMissing:
		return "secondary_missing"
	case CodeSecondaryInvalid:
		return "secondary_invalid"
	default:
		return "no_match"
	}
}

// ParseConfirmationCode maps a USPS DPV confirmation indicator to a
// [ConfirmationCode]. "Y" is confirmed, "D" is secondary missing, "S" is
// secondary invalid. Anything else, including "N" and the empty string, is
// [CodeNoMatch].
func ParseConfirmationCode(dpv string) ConfirmationCode {
	switch dpv {
	case "Y":
		return CodeConfirmed
	case "D":
		return CodeSecondaryMissing
	case "S":
		return CodeSecondaryInvalid
	default:
		return CodeNoMatch
	}
}

// Outcome is the result of a verification lookup: either a match carrying the
// verified address and its confirmation code, or no match with an optional
// reason.
//
// Build values with [Matched] or [Unmatched]. The zero value is an unmatched
// outcome without a reason.
type Outcome struct {
	verified *VerifiedAddress
	code     ConfirmationCode
	reason   string
}

// Matched returns an outcome for an address the service found.
func Matched(verified VerifiedAddress, code ConfirmationCode) Outcome {
	return Outcome{verified: &verified, code: code}
}

// Unmatched returns an outcome for an address the service did not find.
// reason may be empty when the service gave no explanation.
func Unmatched(reason string) Outcome {
	return Outcome{reason: reason}
}

// IsMatched reports whether the service found the address.
func (o Outcome) IsMatched() bool {
	return o.verified != nil
}

// Verified returns the verified address and true for a matched outcome.
func (o Outcome) Verified() (VerifiedAddress, bool) {
	if o.verified == nil {
		return VerifiedAddress{}, false
	}
	return *o.verified, true
}

// Code returns the confirmation code of a matched outcome. Unmatched outcomes
// report [CodeNoMatch].
func (o Outcome) Code() ConfirmationCode {
	if o.verified == nil {
		return CodeNoMatch
	}
	return o.code
}

// Reason returns the service-supplied reason of an unmatched outcome.
func (o Outcome) Reason() string {
	return o.reason
}
