// Package provider abstracts the generative text source: prompt in,
// markdown out. The rest of the system treats it as opaque.
package provider

import "context"

// Provider is the abstraction over generative text APIs.
type Provider interface {
	// Generate produces markdown text for the given prompt. Errors are
	// transport or quota failures from the upstream service.
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
