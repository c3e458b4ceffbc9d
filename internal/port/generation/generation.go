// Package generation defines the content generation port shared by the
// draft, critique and revise roles.
package generation

import (
	"context"

	"github.com/Strob0t/ReviewForge/internal/domain/revision"
)

// Generator produces text from role instructions and role-specific input.
// Implementations return an error wrapping domain.ErrGenerationUnavailable
// when no usable content comes back, including safety-filtered responses.
type Generator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, instructions, input string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, instructions, input string) (string, error) {
	return f(ctx, instructions, input)
}

// RoleClient binds a Generator to one role's instructions.
type RoleClient struct {
	Role         revision.Role
	Instructions string
	Generator    Generator
}

// Generate runs the role against input.
func (c RoleClient) Generate(ctx context.Context, input string) (string, error) {
	return c.Generator.Generate(ctx, c.Instructions, input)
}
