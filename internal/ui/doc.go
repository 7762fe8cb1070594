// Package ui styles CLI output with lipgloss.
//
// [Palette] holds the named styles used by command output: titles, success,
// errors, warnings and help text. [Swatch] renders a tag name on its own
// colour so `moodring tags list` mirrors what clients show.
package ui
