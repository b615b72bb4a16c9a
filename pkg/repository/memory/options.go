package memory

// Option is a functor to pass optional parameters to the in-memory repository
type Option func(*Repository)

// Name of the repository
func Name(name string) Option {
	return func(r *Repository) {
		if name != "" {
			r.name = name
		}
	}
}

// DefaultBranch sets the name of the default branch. The default is "main".
func DefaultBranch(branch string) Option {
	return func(r *Repository) {
		if branch != "" {
			r.defaultBranch = branch
		}
	}
}
