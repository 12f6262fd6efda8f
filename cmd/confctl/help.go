package main

import (
	"bytes"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/ui"
)

// helpStyle recolors the part of cobra's help text captured by the
// pattern's "x" group.
type helpStyle struct {
	re     *regexp.Regexp
	render func(string) string
}

var helpStyles = []helpStyle{
	// Group and section headers, e.g. "Configurations:" or "Global Flags:".
	{regexp.MustCompile(`(?m)^(?P<x>[A-Z][^\n]*:)[ \t]*$`), ui.RenderAccent},
	// Command names in the command listings.
	{regexp.MustCompile(`(?m)^  (?P<x>[a-z][\w-]*)  `), ui.RenderCommand},
	// Flag value types.
	{regexp.MustCompile(`--[\w-]+ (?P<x>string|int|duration|strings|stringArray|stringSlice)\b`), ui.RenderMuted},
	// Default values.
	{regexp.MustCompile(`(?P<x>\(default [^)]*\))`), ui.RenderMuted},
}

// colorizedHelpFunc renders cobra's usage text, recolored when the
// terminal allows it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		_, _ = io.WriteString(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, st := range helpStyles {
		s = restyle(st, s)
	}
	return s
}

func restyle(st helpStyle, s string) string {
	x := st.re.SubexpIndex("x")
	var out []byte
	last := 0
	for _, m := range st.re.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2*x], m[2*x+1]
		out = append(out, s[last:start]...)
		out = append(out, st.render(s[start:end])...)
		last = end
	}
	return string(append(out, s[last:]...))
}
