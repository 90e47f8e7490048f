package environment

import "log/slog"

// BuilderOption is a functional option for configuring an environment Builder.
type BuilderOption func(*builder)

// WithRoot sets the directory or URL that environment directories live under.
//
// Parameters:
//   - root: the image root, for example "<base path>/assets/images"
//
// Returns:
//   - BuilderOption: a function that applies the root to a builder
func WithRoot(root string) BuilderOption {
	return func(b *builder) {
		b.root = root
	}
}

// WithLUTPath sets the BRDF lookup table image reference.
func WithLUTPath(path string) BuilderOption {
	return func(b *builder) {
		b.lutPath = path
	}
}

// WithExistenceChecker sets the capability used to probe specular mip levels.
func WithExistenceChecker(c ExistenceChecker) BuilderOption {
	return func(b *builder) {
		if c != nil {
			b.checker = c
		}
	}
}

// WithMaxMipLevels bounds the specular probe per face.
func WithMaxMipLevels(n int) BuilderOption {
	return func(b *builder) {
		if n > 0 {
			b.maxMipLevels = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *builder) {
		if l != nil {
			b.logger = l
		}
	}
}
