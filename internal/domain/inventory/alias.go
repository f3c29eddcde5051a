package inventory

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Canonical inventory names that the detector is trained on
const (
	NameToolbox          = "Toolbox"
	NameOxygenTank       = "Oxygen Tank"
	NameFireExtinguisher = "Fire Extinguisher"
)

// classNameAliases maps raw detector labels to canonical inventory names
var classNameAliases = map[string]string{
	"FireExtinguisher": NameFireExtinguisher,
	"ToolBox":          NameToolbox,
	"OxygenTank":       NameOxygenTank,
}

// NormalizeLabel returns the canonical inventory name for a raw detector label.
// Labels without an alias are returned unchanged.
func NormalizeLabel(raw string) string {
	if canonical, ok := classNameAliases[raw]; ok {
		return canonical
	}
	return raw
}

// NameKey returns the canonical lookup key for an item name: alias applied,
// Unicode case folded and inner whitespace collapsed.
func NameKey(name string) string {
	folded := cases.Fold().String(NormalizeLabel(strings.TrimSpace(name)))
	return strings.Join(strings.Fields(folded), " ")
}

// CanonicalNames returns the names the dashboard summary reports on
func CanonicalNames() []string {
	return []string{NameToolbox, NameOxygenTank, NameFireExtinguisher}
}

// Aliases returns a copy of the alias table, sorted by raw label
func Aliases() []Alias {
	out := make([]Alias, 0, len(classNameAliases))
	for raw, canonical := range classNameAliases {
		out = append(out, Alias{Label: raw, Name: canonical})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out
}

// Alias is a single raw label to canonical name mapping
type Alias struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}
