package core

import "strings"

// ResolveCommand finds the command a typed name refers to.
//
// A configured alias wins over a module's default alias, and module aliases
// are scanned in load order. The substituted name (or the typed name when no
// alias applied) is then matched case-insensitively against each module's
// commands, again in load order. Nothing is cached between calls.
func ResolveCommand(typed string, configAliases map[string]string, modules []*Module) (*Command, *Module) {
	name := strings.ToLower(strings.TrimSpace(typed))
	if name == "" {
		return nil, nil
	}

	if target, ok := lookupAlias(configAliases, name); ok {
		name = target
	} else {
		for _, m := range modules {
			if target, ok := m.Aliases[name]; ok {
				name = target
				break
			}
		}
	}

	name = strings.ToLower(name)
	for _, m := range modules {
		if c := m.Command(name); c != nil {
			return c, m
		}
	}
	return nil, nil
}

func lookupAlias(aliases map[string]string, name string) (string, bool) {
	if target, ok := aliases[name]; ok {
		return target, true
	}
	for alias, target := range aliases {
		if strings.ToLower(alias) == name {
			return target, true
		}
	}
	return "", false
}
