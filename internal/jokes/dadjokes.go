package jokes

import (
	"context"
	"fmt"
	"strings"

	"resty.dev/v3"

	"github.com/MrWong99/toolbox/internal/upstream"
)

// DadJokes is a client for icanhazdadjoke.com. Safe for concurrent use.
//
// The API asks callers to identify themselves; configure a User-Agent on the
// upstream client.
type DadJokes struct {
	api *upstream.Client
}

// NewDadJokes returns a client that talks to the API through api.
func NewDadJokes(api *upstream.Client) *DadJokes {
	return &DadJokes{api: api}
}

type dadJoke struct {
	ID     string `json:"id"`
	Joke   string `json:"joke"`
	Status int    `json:"status"`
}

// Random returns a random dad joke.
func (d *DadJokes) Random(ctx context.Context) (string, error) {
	resp, err := d.api.Do(ctx, "random", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Accept", "application/json").Get("/")
	})
	if err != nil {
		return "", fmt.Errorf("jokes: dad joke: %w", err)
	}

	var j dadJoke
	if err := decode(resp, &j); err != nil {
		return "", err
	}
	if strings.TrimSpace(j.Joke) == "" {
		return "", ErrEmptyJoke
	}
	return j.Joke, nil
}

// Check reports whether the upstream is currently usable.
func (d *DadJokes) Check(ctx context.Context) error {
	return d.api.Check(ctx)
}
