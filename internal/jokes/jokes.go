// Package jokes contains clients for the public joke APIs behind the joke
// tools: api.chucknorris.io and icanhazdadjoke.com.
package jokes

import (
	"encoding/json"
	"errors"
	"fmt"

	"resty.dev/v3"
)

// Default API hosts.
const (
	DefaultChuckNorrisURL = "https://api.chucknorris.io"
	DefaultDadJokesURL    = "https://icanhazdadjoke.com"
)

var (
	// ErrEmptyJoke is returned when an API answers successfully but without
	// joke text.
	ErrEmptyJoke = errors.New("jokes: upstream returned an empty joke")

	// ErrUnknownCategory is returned when the Chuck Norris API does not know
	// the requested category.
	ErrUnknownCategory = errors.New("jokes: unknown category")
)

// decode unmarshals the body of resp into v.
func decode(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Bytes(), v); err != nil {
		return fmt.Errorf("jokes: decode response: %w", err)
	}
	return nil
}
