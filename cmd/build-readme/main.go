package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	_ "github.com/keshon/modbot/internal/command/autorespond"
	_ "github.com/keshon/modbot/internal/command/core"
	_ "github.com/keshon/modbot/internal/command/utils"

	"github.com/keshon/modbot/internal/core"
)

const defaultTemplate = `# modbot

A modular chat bot. Modules are loaded, unloaded and reloaded at runtime;
builtin modules are compiled in, Lua modules are read from MODULE_PATHS.

## Builtin modules

{{.CommandSections}}`

func main() {
	tmplData, err := os.ReadFile("README.md.tmpl")
	if err != nil {
		tmplData = []byte(defaultTemplate)
	}

	tmpl, err := template.New("readme").Parse(string(tmplData))
	if err != nil {
		panic(err)
	}

	var buf bytes.Buffer
	for _, name := range core.DefaultCatalog.Names() {
		factory, _ := core.DefaultCatalog.Factory(name)
		mod := factory()

		fmt.Fprintf(&buf, "### %s\n\n", name)
		if mod.Description != "" {
			fmt.Fprintf(&buf, "%s\n\n", mod.Description)
		}
		for _, c := range mod.Commands {
			fmt.Fprintf(&buf, "* **`%s`** (%s)\n  %s\n", c.Usage("$"), c.Level(), c.Description)
			if len(c.Aliases) > 0 {
				fmt.Fprintf(&buf, "  Aliases: `%s`\n", strings.Join(c.Aliases, "`, `"))
			}
			buf.WriteString("\n")
		}
	}

	data := map[string]any{
		"CommandSections": buf.String(),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		panic(err)
	}

	if err := os.WriteFile("README.md", out.Bytes(), 0644); err != nil {
		panic(err)
	}
}
