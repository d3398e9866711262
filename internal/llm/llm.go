// Package llm wraps Genkit model access behind a minimal text-completion
// interface. The dispatch engine treats the model as an opaque oracle: role-
// tagged text in, text out. Keeping the interface this narrow lets tests
// substitute a registered mock model without touching dispatch logic.
package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// Model is the text-completion oracle the agent depends on.
type Model interface {
	// Generate produces a completion for the given system and user text.
	// An empty system prompt is omitted from the request.
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Client is the Genkit-backed Model implementation.
type Client struct {
	g         *genkit.Genkit
	modelName string
}

// NewClient initializes Genkit with the GoogleAI plugin and returns a Client
// for modelName (e.g. "googleai/gemini-2.5-flash"). The plugin reads
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewClient(ctx context.Context, modelName string) *Client {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
	)
	return &Client{g: g, modelName: modelName}
}

// NewWithGenkit wraps an existing Genkit instance. Tests use this to register
// a mock model and point the client at it.
func NewWithGenkit(g *genkit.Genkit, modelName string) *Client {
	return &Client{g: g, modelName: modelName}
}

// Generate implements Model. Calls are blocking with no retry: a failed model
// call terminates the request's processing (the dispatch layer owns the
// degradation to a textual error).
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}
