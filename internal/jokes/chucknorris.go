package jokes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/MrWong99/toolbox/internal/upstream"
)

// ChuckNorris is a client for api.chucknorris.io. Safe for concurrent use.
type ChuckNorris struct {
	api *upstream.Client
}

// NewChuckNorris returns a client that talks to the API through api.
func NewChuckNorris(api *upstream.Client) *ChuckNorris {
	return &ChuckNorris{api: api}
}

type chuckJoke struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type chuckSearch struct {
	Total  int         `json:"total"`
	Result []chuckJoke `json:"result"`
}

// Random returns a random joke, optionally restricted to category.
func (c *ChuckNorris) Random(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	resp, err := c.api.Do(ctx, "random", func(r *resty.Request) (*resty.Response, error) {
		r.SetHeader("Accept", "application/json")
		if category != "" {
			r.SetQueryParam("category", category)
		}
		return r.Get("/jokes/random")
	})
	if err != nil {
		var se *upstream.StatusError
		if category != "" && errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w %q", ErrUnknownCategory, category)
		}
		return "", fmt.Errorf("jokes: chuck norris random: %w", err)
	}

	var j chuckJoke
	if err := decode(resp, &j); err != nil {
		return "", err
	}
	if strings.TrimSpace(j.Value) == "" {
		return "", ErrEmptyJoke
	}
	return j.Value, nil
}

// Categories returns the joke categories the API knows about.
func (c *ChuckNorris) Categories(ctx context.Context) ([]string, error) {
	resp, err := c.api.Do(ctx, "categories", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Accept", "application/json").Get("/jokes/categories")
	})
	if err != nil {
		return nil, fmt.Errorf("jokes: chuck norris categories: %w", err)
	}

	var cats []string
	if err := decode(resp, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Search returns the text of every joke matching query, in API order.
func (c *ChuckNorris) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := c.api.Do(ctx, "search", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetHeader("Accept", "application/json").
			SetQueryParam("query", query).
			Get("/jokes/search")
	})
	if err != nil {
		return nil, fmt.Errorf("jokes: chuck norris search: %w", err)
	}

	var s chuckSearch
	if err := decode(resp, &s); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.Result))
	for _, j := range s.Result {
		if v := strings.TrimSpace(j.Value); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// Check reports whether the upstream is currently usable.
func (c *ChuckNorris) Check(ctx context.Context) error {
	return c.api.Check(ctx)
}
