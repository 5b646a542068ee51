package environment

// Resolve returns the active environment for project: a non-empty override from
// store, then fallback, then production.
func Resolve(project string, store OverrideStore, fallback Target) (Target, error) {
	if project == "" {
		return Target{}, ErrMissingProject
	}
	if store != nil {
		if t, ok := store.Lookup(project); ok && !t.IsZero() {
			return t, nil
		}
	}
	if !fallback.IsZero() {
		return fallback, nil
	}
	return EnvironmentID(Production), nil
}

// Override sets the per-project override, or clears it when value is empty.
// The page-wide fallback is not affected.
func Override(project, value string, store OverrideStore) error {
	if project == "" {
		return ErrMissingProject
	}
	if value == "" {
		store.Clear(project)
		return nil
	}
	store.Store(project, ParseTarget(value))
	return nil
}
