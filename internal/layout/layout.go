// Package layout describes the persisted ledger_state row for every
// generation and checks that the row only ever grows at the end.
//
// The layouts are declared in layouts.cue and compiled with the CUE Go API at
// startup. The store derives its migration DDL from the difference between
// two layouts.
package layout

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed layouts.cue
var layoutsCUE []byte

// StateTable is the name of the single-row table holding the scalar fields.
const StateTable = "ledger_state"

// Column is one persisted scalar field.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
}

// Layout is the ordered column list of the state row for one generation.
type Layout struct {
	Generation uint64   `json:"generation"`
	State      []Column `json:"state"`
}

// Has reports whether the layout contains a column called name.
func (l Layout) Has(name string) bool {
	for _, c := range l.State {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Names returns the column names in layout order.
func (l Layout) Names() []string {
	names := make([]string, len(l.State))
	for i, c := range l.State {
		names[i] = c.Name
	}
	return names
}

// CreateTable returns the DDL creating the state table with this layout.
// The row is keyed by a constant id so the table never holds more than one.
func (l Layout) CreateTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", StateTable)
	b.WriteString("\tid INTEGER PRIMARY KEY CHECK (id = 1)")
	for _, c := range l.State {
		fmt.Fprintf(&b, ",\n\t%s", columnDef(c))
	}
	b.WriteString("\n)")
	return b.String()
}

func columnDef(c Column) string {
	return fmt.Sprintf("%s %s NOT NULL DEFAULT %s", c.Name, c.Type, c.Default)
}

// Catalog holds every known layout, ordered by generation.
type Catalog struct {
	Layouts []Layout
}

// Load compiles the embedded layouts and validates them.
func Load() (*Catalog, error) {
	return Parse(layoutsCUE, "layouts.cue")
}

// Parse compiles CUE source declaring a top-level layouts list and validates
// the result.
func Parse(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	lv := v.LookupPath(cue.ParsePath("layouts"))
	if !lv.Exists() {
		return nil, &SchemaError{Field: "layouts", Message: "layouts list is required", Pos: v.Pos()}
	}
	if err := lv.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var layouts []Layout
	if err := lv.Decode(&layouts); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{Layouts: layouts}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that generations are numbered 1..n without gaps, that column
// names are unique within a layout, and that each layout is the previous one
// with columns appended.
func (c *Catalog) Validate() error {
	if len(c.Layouts) == 0 {
		return &SchemaError{Field: "layouts", Message: "at least one layout is required"}
	}

	for i, l := range c.Layouts {
		field := fmt.Sprintf("layouts[%d]", i)
		if l.Generation != uint64(i+1) {
			return &SchemaError{
				Field:   field + ".generation",
				Message: fmt.Sprintf("expected generation %d, got %d", i+1, l.Generation),
			}
		}

		seen := make(map[string]bool, len(l.State))
		for _, col := range l.State {
			if seen[col.Name] {
				return &SchemaError{
					Field:   field + ".state",
					Message: fmt.Sprintf("duplicate column %q", col.Name),
				}
			}
			seen[col.Name] = true
		}

		if i == 0 {
			continue
		}
		prev := c.Layouts[i-1]
		if len(l.State) < len(prev.State) {
			return &SchemaError{
				Field:   field + ".state",
				Message: fmt.Sprintf("generation %d drops columns of generation %d", l.Generation, prev.Generation),
			}
		}
		for j, old := range prev.State {
			if l.State[j] != old {
				return &SchemaError{
					Field: fmt.Sprintf("%s.state[%d]", field, j),
					Message: fmt.Sprintf("column %q of generation %d changed to %q %s in generation %d",
						old.Name, prev.Generation, l.State[j].Name, l.State[j].Type, l.Generation),
				}
			}
		}
	}
	return nil
}

// Latest returns the layout of the highest generation.
func (c *Catalog) Latest() Layout {
	return c.Layouts[len(c.Layouts)-1]
}

// At returns the layout for gen.
func (c *Catalog) At(gen uint64) (Layout, bool) {
	if gen == 0 || gen > uint64(len(c.Layouts)) {
		return Layout{}, false
	}
	return c.Layouts[gen-1], true
}

// Migration returns the statements that turn a state table laid out for
// generation from into one laid out for generation to. Only forward
// migrations exist.
func (c *Catalog) Migration(from, to uint64) ([]string, error) {
	src, ok := c.At(from)
	if !ok {
		return nil, fmt.Errorf("migration: unknown layout generation %d", from)
	}
	dst, ok := c.At(to)
	if !ok {
		return nil, fmt.Errorf("migration: unknown layout generation %d", to)
	}
	if to < from {
		return nil, fmt.Errorf("migration: cannot go back from generation %d to %d", from, to)
	}

	var stmts []string
	for _, col := range dst.State[len(src.State):] {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", StateTable, columnDef(col)))
	}
	return stmts, nil
}

// SchemaError reports an invalid layout declaration.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
