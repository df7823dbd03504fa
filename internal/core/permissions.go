package core

import (
	"slices"

	"github.com/rs/zerolog"
)

// PermissionRequest is built per dispatch and discarded afterwards.
type PermissionRequest struct {
	SenderID string
	OwnerID  string
	Roles    []string
	Groups   map[string][]string

	// Level is the command's declared level.
	Level string
	// GlobalOverride replaces Level when non-empty.
	GlobalOverride string
	// RoleOverride is a role id configured for this command on this server.
	RoleOverride string
}

// EffectiveLevel is the level actually enforced.
func (r PermissionRequest) EffectiveLevel() string {
	if r.GlobalOverride != "" {
		return r.GlobalOverride
	}
	return r.Level
}

// Authorize decides whether the sender may run the command. Checks run in a
// fixed order and the first match allows: owner, "all", group membership,
// server role override.
func Authorize(r PermissionRequest) bool {
	if r.OwnerID != "" && r.SenderID == r.OwnerID {
		return true
	}

	level := r.EffectiveLevel()
	if level == LevelAll {
		return true
	}

	if members, ok := r.Groups[level]; ok && slices.Contains(members, r.SenderID) {
		return true
	}

	if r.RoleOverride != "" && slices.Contains(r.Roles, r.RoleOverride) {
		return true
	}

	return false
}

// Groups reads the group -> member ids table. When the table does not decode
// as a whole it is read group by group, and malformed groups are logged and
// skipped so the remaining ones still apply.
func Groups(cfg Config, logger zerolog.Logger) map[string][]string {
	groups := map[string][]string{}
	err := cfg.Decode("groups", &groups)
	if err == nil {
		return groups
	}
	logger.Warn().Err(err).Msg("groups table is malformed, reading it per group")

	groups = map[string][]string{}
	raw, _ := cfg.Get("groups", nil).(map[string]any)
	for name, v := range raw {
		list, ok := v.([]any)
		if !ok {
			logger.Warn().Str("group", name).Msg("skipping group that is not a list of user ids")
			continue
		}
		var members []string
		for _, m := range list {
			if id, ok := m.(string); ok {
				members = append(members, id)
			} else {
				logger.Warn().Str("group", name).Interface("member", m).Msg("skipping member id that is not a string")
			}
		}
		groups[name] = members
	}
	return groups
}
