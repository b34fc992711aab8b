package interpreter

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/NoelToby/refr/pkg/factory"
)

// PrintFactories writes a table of every registered interface, its type
// names, and the members each type declares.
func (in *Interpreter) PrintFactories(w io.Writer) error {
	return PrintCatalog(w, in.catalog)
}

// PrintCatalog writes the table PrintFactories prints for c.
func PrintCatalog(w io.Writer, c *factory.Catalog) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Interface", "Type", "Members"})
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)

	for _, f := range c.Factories() {
		names := f.Names()
		if len(names) == 0 {
			table.Append([]string{f.Interface(), "(none)", ""})
			continue
		}
		for _, name := range names {
			specs, err := c.Describe(f.Interface(), name)
			if err != nil {
				return err
			}
			table.Append([]string{f.Interface(), name, memberList(specs)})
		}
	}
	table.Render()
	return nil
}

func memberList(specs []factory.FieldSpec) string {
	if len(specs) == 0 {
		return "-"
	}
	lines := make([]string, len(specs))
	for i, s := range specs {
		line := fmt.Sprintf("%s %s", s.Type, s.Name)
		var notes []string
		if s.Required {
			notes = append(notes, "required")
		}
		if s.Writer.Kind == factory.EnvOnly {
			notes = append(notes, "bind-only")
		}
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
