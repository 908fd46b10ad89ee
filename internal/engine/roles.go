package engine

// checkAccess enforces the table-level access rule: the caller must hold at
// least one of the configured roles.
func (e *Engine) checkAccess(roles []string) error {
	if e.cfg.Access == nil || len(e.cfg.Access.Roles) == 0 {
		return nil
	}
	if hasAnyRole(roles, e.cfg.Access.Roles) {
		return nil
	}
	return accessErrf("access to table %q denied", e.cfg.Name)
}

// visibleFields derives the caller's effective field set: role-restricted
// columns are dropped unless the caller holds a matching role. The shared
// config is never mutated; the result is a request-scoped view.
func (e *Engine) visibleFields(roles []string) []*Field {
	all := e.res.Fields()
	out := make([]*Field, 0, len(all))
	for _, f := range all {
		if f.Col != nil && len(f.Col.Roles) > 0 && !hasAnyRole(roles, f.Col.Roles) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hasAnyRole(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
