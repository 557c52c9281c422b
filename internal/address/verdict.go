package address

import (
	"fmt"
	"strings"
)

// Kind identifies which of the four verdicts was reached.
type Kind int

const (
	// KindInvalid means the address could not be verified.
	KindInvalid Kind = iota

	// KindValid means the address was confirmed as submitted.
	KindValid

	// KindCorrected means the service rewrote the street; the verdict carries
	// the corrected address.
	KindCorrected

	// KindAccuracy means the street matched but secondary unit information
	// is missing or invalid; the verdict carries the standardised address.
	KindAccuracy
)

// String returns the human-readable name of the verdict kind.
func (k Kind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindCorrected:
		return "corrected"
	case KindAccuracy:
		return "accuracy"
	default:
		return "invalid"
	}
}

// Verdict is the classification of one verification attempt.
//
// Suggestion is set for [KindCorrected] and [KindAccuracy]. Reason is set for
// [KindInvalid] when an explanation is available.
type Verdict struct {
	Kind       Kind
	Suggestion string
	Reason     string
}

// Valid returns the verdict for a confirmed address.
func Valid() Verdict { return Verdict{Kind: KindValid} }

// CorrectedSuggestion returns the verdict for an address the service rewrote.
func CorrectedSuggestion(formatted string) Verdict {
	return Verdict{Kind: KindCorrected, Suggestion: formatted}
}

// AccuracySuggestion returns the verdict for an address whose secondary unit
// information could be improved.
func AccuracySuggestion(formatted string) Verdict {
	return Verdict{Kind: KindAccuracy, Suggestion: formatted}
}

// Invalid returns the verdict for an address that could not be verified.
// An empty reason renders as the generic invalid message.
func Invalid(reason string) Verdict {
	return Verdict{Kind: KindInvalid, Reason: reason}
}

// Message renders v into the text returned to the tool caller.
func (v Verdict) Message() string {
	switch v.Kind {
	case KindValid:
		return "Address is valid."
	case KindCorrected:
		return "Address was corrected. Suggested address: " + v.Suggestion
	case KindAccuracy:
		return "Address could be more accurate. Suggested address: " + v.Suggestion
	default:
		if v.Reason == "" {
			return "Address is invalid."
		}
		return "Invalid Address. Reason: " + v.Reason
	}
}

// String implements [fmt.Stringer] by returning [Verdict.Message].
func (v Verdict) String() string { return v.Message() }

// Evaluate classifies a verification outcome for the submitted address.
//
// An unmatched outcome is always invalid. For a matched outcome a street that
// differs from the submitted one (after [NormalizeStreet]) yields a corrected
// suggestion whatever the confirmation code says; only identical streets let
// the code decide between valid, accuracy suggestion and invalid.
//
// Evaluate is total and never panics.
func Evaluate(submitted SubmittedAddress, outcome Outcome) Verdict {
	verified, ok := outcome.Verified()
	if !ok {
		return Invalid(outcome.Reason())
	}

	formatted := Format(verified)

	if NormalizeStreet(submitted.Street) != NormalizeStreet(verified.Street) {
		return CorrectedSuggestion(formatted)
	}

	switch outcome.Code() {
	case CodeConfirmed:
		return Valid()
	case CodeSecondaryMissing, CodeSecondaryInvalid:
		return AccuracySuggestion(formatted)
	default:
		return Invalid("")
	}
}

// NormalizeStreet prepares a street line for comparison: surrounding
// whitespace is trimmed and letters are uppercased. Internal whitespace and
// punctuation are left untouched, so "123  Main St." and "123 MAIN ST" still
// differ.
func NormalizeStreet(street string) string {
	return strings.ToUpper(strings.TrimSpace(street))
}

// Format renders a verified address as "{street}, {city}, {state} {zip}-{zip4}".
// The "-{zip4}" suffix is omitted when the service returned no extension.
func Format(v VerifiedAddress) string {
	if v.Zip4 == "" {
		return fmt.Sprintf("%s, %s, %s %s", v.Street, v.City, v.State, v.Zip)
	}
	return fmt.Sprintf("%s, %s, %s %s-%s", v.Street, v.City, v.State, v.Zip, v.Zip4)
}
