package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

type Options struct {
	NoColor bool
	Out     io.Writer
}

type Renderer struct {
	out     io.Writer
	isTTY   bool
	noColor bool
	styles  styles
}

type styles struct {
	info        lipgloss.Style
	ok          lipgloss.Style
	warn        lipgloss.Style
	label       lipgloss.Style
	group       lipgloss.Style
	matched     lipgloss.Style
	tool        lipgloss.Style
	description lipgloss.Style
	summary     lipgloss.Style
}

func NewRenderer(opts Options) *Renderer {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	profile := termenv.EnvColorProfile()
	if opts.NoColor || !isTTY {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)

	return &Renderer{
		out:     out,
		isTTY:   isTTY,
		noColor: opts.NoColor || profile == termenv.Ascii,
		styles: styles{
			info:        lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
			ok:          lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
			warn:        lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
			label:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			group:       lipgloss.NewStyle().Bold(true),
			matched:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
			tool:        lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true),
			description: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			summary:     lipgloss.NewStyle().Bold(true),
		},
	}
}

func (r *Renderer) Info(message string) {
	r.println(r.styles.info.Render(message))
}

func (r *Renderer) View(view catalog.View, currentSite string) {
	if currentSite != "" {
		r.println(r.styles.label.Render("site: " + currentSite))
	}
	if len(view.Groups) == 0 {
		r.println(r.styles.warn.Render("no tools found"))
		return
	}
	for i, group := range view.Groups {
		if i > 0 {
			if view.Separated() && view.Grouping == catalog.GroupBinary {
				r.println(r.styles.label.Render(strings.Repeat("-", 24)))
			} else {
				fmt.Fprintln(r.out)
			}
		}
		style := r.styles.group
		if group.Matched {
			style = r.styles.matched
		}
		if view.Grouping != catalog.GroupBinary || view.Separated() {
			r.println(style.Render(group.Name))
		}
		for _, tool := range group.Tools {
			r.println(r.toolLine(tool))
		}
	}
	r.println(r.styles.summary.Render(fmt.Sprintf("%d tools", view.Total)))
}

func (r *Renderer) toolLine(tool catalog.Tool) string {
	line := "  " + r.styles.tool.Render(tool.Name) + " " + r.styles.label.Render(tool.URL)
	if tool.Source == catalog.SourceUser {
		line += " " + r.styles.label.Render("(yours)")
	}
	if strings.TrimSpace(tool.Description) != "" {
		line += "\n    " + r.styles.description.Render(tool.Description)
	}
	return line
}

func (r *Renderer) Added(tool store.UserTool, total int) {
	msg := r.styles.ok.Render("added") + " " + tool.Name + " -> " + tool.URL
	if tool.Category != "" {
		msg += " [" + tool.Category + "]"
	}
	r.println(msg)
	r.println(r.styles.summary.Render(fmt.Sprintf("%d user tools", total)))
}

func (r *Renderer) Imported(path string, count int) {
	r.println(fmt.Sprintf("%s %d tools from %s", r.styles.ok.Render("imported"), count, path))
}

func (r *Renderer) Changed(tools []store.UserTool) {
	r.println(r.styles.summary.Render(fmt.Sprintf("user tools: %d", len(tools))))
	for _, tool := range tools {
		line := "  " + r.styles.tool.Render(tool.Name) + " " + r.styles.label.Render(tool.URL)
		if tool.Category != "" {
			line += " [" + tool.Category + "]"
		}
		r.println(line)
	}
}

func (r *Renderer) Cleared() {
	r.println(r.styles.ok.Render("cleared") + " user tools")
}

func (r *Renderer) println(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	fmt.Fprintln(r.out, message)
}
