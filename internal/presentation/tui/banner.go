package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the formflow banner followed by the form title.
func PrintBanner(w io.Writer, title string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __                    __ _               ", "#818cf8"},
		{"  / _| ___  _ __ _ __ __/ _| | _____      __", "#a78bfa"},
		{" | |_ / _ \\| '__| '_ ` _ \\ |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" |  _| (_) | |  | | | | | |  _| | (_) \\ V  V / ", "#e879f9"},
		{" |_|  \\___/|_|  |_| |_| |_|_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	if title != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, out.String("  "+title).Bold())
	}
	fmt.Fprintln(w)
}

// Heading returns a function that styles step headings for w.
func Heading(w io.Writer) func(string) string {
	out := termenv.NewOutput(w)
	color := out.ColorProfile().Color("#a78bfa")
	return func(s string) string {
		return out.String(s).Bold().Foreground(color).String()
	}
}
