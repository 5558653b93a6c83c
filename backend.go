package llmroute

import "context"

// Backend is the invocation contract for one external model-serving client.
// Implementations are constructed and authenticated by the caller and
// injected into the router; one Backend serves all models of its provider.
type Backend interface {
	// Name returns the provider identifier (e.g. "openai", "gemini").
	Name() string

	// Invoke sends the prompt to the given model. The context carries the
	// router's deadline; the client is responsible for releasing its own
	// resources when the context is cancelled.
	Invoke(ctx context.Context, modelID, prompt string) (Invocation, error)
}

// Invocation is the raw result of one backend call.
type Invocation struct {
	Text  string
	Usage Usage
}
