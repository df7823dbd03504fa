// Package core is the builtin administration module: bot info and help,
// config editing, module lifecycle, permissions, aliases and per-server
// settings.
package core

import (
	api "github.com/keshon/modbot/internal/core"
)

// Name is the module name; it is always loaded and cannot be unloaded.
const Name = "core"

const manager = "manager"

func init() {
	api.RegisterModule(Name, New)
}

func New() *api.Module {
	var cmds []*api.Command
	cmds = append(cmds, infoCommands()...)
	cmds = append(cmds, configCommands()...)
	cmds = append(cmds, lifecycleCommands()...)
	cmds = append(cmds, permissionCommands()...)
	cmds = append(cmds, aliasCommands()...)
	cmds = append(cmds, serverCommands()...)

	return &api.Module{
		Description: "Bot administration",
		Commands:    cmds,
	}
}
