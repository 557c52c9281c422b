// Package joketool provides the joke tools:
//
//   - get_chuck_norris_joke returns a random Chuck Norris joke, optionally
//     from one category.
//   - list_chuck_norris_categories lists the known categories.
//   - search_chuck_norris_jokes finds jokes matching a free-text query.
//   - get_dad_joke returns a random dad joke.
//
// Handlers forward to the joke sources and return plain text.
package joketool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/toolbox/internal/mcp/tools"
)

// Search limits enforced by the Chuck Norris API and the tool.
const (
	minQueryLen  = 3
	maxQueryLen  = 120
	defaultLimit = 5
	maxLimit     = 20
)

// ChuckNorrisSource fetches Chuck Norris jokes.
type ChuckNorrisSource interface {
	Random(ctx context.Context, category string) (string, error)
	Categories(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string) ([]string, error)
}

// DadJokeSource fetches dad jokes.
type DadJokeSource interface {
	Random(ctx context.Context) (string, error)
}

type randomArgs struct {
	Category string `json:"category"`
}

type searchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

func randomHandler(src ChuckNorrisSource) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a randomArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("joketool: failed to parse arguments: %w", err)
		}
		return src.Random(ctx, strings.ToLower(strings.TrimSpace(a.Category)))
	}
}

func categoriesHandler(src ChuckNorrisSource) func(context.Context, string) (string, error) {
	return func(ctx context.Context, _ string) (string, error) {
		cats, err := src.Categories(ctx)
		if err != nil {
			return "", err
		}
		if len(cats) == 0 {
			return "No categories available.", nil
		}
		return "Available categories: " + strings.Join(cats, ", "), nil
	}
}

func searchHandler(src ChuckNorrisSource) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a searchArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("joketool: failed to parse arguments: %w", err)
		}

		query := strings.TrimSpace(a.Query)
		if n := utf8.RuneCountInString(query); n < minQueryLen || n > maxQueryLen {
			return "", fmt.Errorf("joketool: query must be %d to %d characters, got %d", minQueryLen, maxQueryLen, n)
		}
		limit := defaultLimit
		if a.Limit != nil {
			limit = *a.Limit
		}
		if limit < 1 || limit > maxLimit {
			return "", fmt.Errorf("joketool: limit must be between 1 and %d, got %d", maxLimit, limit)
		}

		jokes, err := src.Search(ctx, query)
		if err != nil {
			return "", err
		}
		if len(jokes) == 0 {
			return fmt.Sprintf("No jokes found for %q.", query), nil
		}

		var sb strings.Builder
		for i, j := range jokes[:min(limit, len(jokes))] {
			if i > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, j)
		}
		return sb.String(), nil
	}
}

func dadJokeHandler(src DadJokeSource) func(context.Context, string) (string, error) {
	return func(ctx context.Context, _ string) (string, error) {
		return src.Random(ctx)
	}
}

// Tools returns the joke tools backed by cn and dj.
func Tools(cn ChuckNorrisSource, dj DadJokeSource) []tools.Tool {
	return []tools.Tool{
		{
			Definition: tools.Definition{
				Name:        "get_chuck_norris_joke",
				Description: "Get a random Chuck Norris joke, optionally from a specific category.",
				Parameters: tools.ObjectSchema(map[string]any{
					"category": map[string]any{
						"type":        "string",
						"description": "Optional category; see list_chuck_norris_categories.",
					},
				}),
			},
			Handler:     randomHandler(cn),
			DeclaredP50: 300,
			DeclaredMax: 10000,
		},
		{
			Definition: tools.Definition{
				Name:        "list_chuck_norris_categories",
				Description: "List the available Chuck Norris joke categories.",
				Parameters:  tools.ObjectSchema(nil),
				Idempotent:  true,
			},
			Handler:     categoriesHandler(cn),
			DeclaredP50: 300,
			DeclaredMax: 10000,
		},
		{
			Definition: tools.Definition{
				Name:        "search_chuck_norris_jokes",
				Description: "Search Chuck Norris jokes by free-text query.",
				Parameters: tools.ObjectSchema(map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Text to search for.",
						"minLength":   minQueryLen,
						"maxLength":   maxQueryLen,
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of jokes to return.",
						"minimum":     1,
						"maximum":     maxLimit,
						"default":     defaultLimit,
					},
				}, "query"),
				Idempotent: true,
			},
			Handler:     searchHandler(cn),
			DeclaredP50: 400,
			DeclaredMax: 10000,
		},
		{
			Definition: tools.Definition{
				Name:        "get_dad_joke",
				Description: "Get a random dad joke.",
				Parameters:  tools.ObjectSchema(nil),
			},
			Handler:     dadJokeHandler(dj),
			DeclaredP50: 300,
			DeclaredMax: 10000,
		},
	}
}
