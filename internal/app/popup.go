package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

// Popup runs the interactive tool picker until the user quits.
func (a *App) Popup(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("popup requires an interactive terminal")
	}
	model := newPopupModel(ctx, popupDeps{
		resolveSite: a.Resolver.Resolve,
		loadUsers:   a.Store.Load,
		appendUser:  a.Store.Append,
		openURL:     a.open,
	}, a.Static, a.Grouping)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := a.Store.Subscribe(func(tools []store.UserTool) {
		program.Send(usersChangedMsg{tools: tools})
	})
	defer unsubscribe()

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

type popupDeps struct {
	resolveSite func(ctx context.Context) string
	loadUsers   func(ctx context.Context) ([]store.UserTool, error)
	appendUser  func(ctx context.Context, tool store.UserTool) ([]store.UserTool, error)
	openURL     func(url string) error
}

type popupMode int

const (
	modeList popupMode = iota
	modeAdd
	modeAbout
)

type siteResolvedMsg struct{ url string }

type usersLoadedMsg struct {
	tools []store.UserTool
	err   error
}

type usersChangedMsg struct{ tools []store.UserTool }

type toolAddedMsg struct {
	tool  store.UserTool
	tools []store.UserTool
	err   error
}

type openedMsg struct {
	url string
	err error
}

type popupModel struct {
	ctx      context.Context
	deps     popupDeps
	static   []catalog.Tool
	grouping catalog.Grouping

	search   textinput.Model
	name     textinput.Model
	category textinput.Model
	field    int

	site     string
	users    []store.UserTool
	view     catalog.View
	tools    []catalog.Tool
	cursor   int
	height   int
	width    int
	mode     popupMode
	status   string
	errMsg   string
	quitting bool
	styles   popupStyles
}

func newPopupModel(ctx context.Context, deps popupDeps, static []catalog.Tool, grouping catalog.Grouping) popupModel {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "Search tools..."
	search.Focus()

	name := textinput.New()
	name.Prompt = "Name: "
	name.Placeholder = "My Tool"

	category := textinput.New()
	category.Prompt = "Category: "
	category.Placeholder = "optional"

	m := popupModel{
		ctx:      ctx,
		deps:     deps,
		static:   static,
		grouping: grouping,
		search:   search,
		name:     name,
		category: category,
		styles:   defaultPopupStyles(),
	}
	m.recompute()
	return m
}

func (m popupModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.resolveSiteCmd(), m.loadUsersCmd())
}

func (m popupModel) resolveSiteCmd() tea.Cmd {
	return func() tea.Msg {
		return siteResolvedMsg{url: m.deps.resolveSite(m.ctx)}
	}
}

func (m popupModel) loadUsersCmd() tea.Cmd {
	return func() tea.Msg {
		tools, err := m.deps.loadUsers(m.ctx)
		return usersLoadedMsg{tools: tools, err: err}
	}
}

func (m popupModel) appendCmd(tool store.UserTool) tea.Cmd {
	return func() tea.Msg {
		tools, err := m.deps.appendUser(m.ctx, tool)
		return toolAddedMsg{tool: tool, tools: tools, err: err}
	}
}

func (m popupModel) openCmd(url string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{url: url, err: m.deps.openURL(url)}
	}
}

func (m popupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.width = msg.Width
		return m, nil
	case siteResolvedMsg:
		m.site = msg.url
		m.recompute()
		return m, nil
	case usersLoadedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.users = msg.tools
		m.recompute()
		return m, nil
	case usersChangedMsg:
		m.users = msg.tools
		m.recompute()
		return m, nil
	case toolAddedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.users = msg.tools
		m.mode = modeList
		m.resetForm()
		m.status = "Added " + msg.tool.Name
		m.recompute()
		cmd := m.search.Focus()
		return m, cmd
	case openedMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("open %s: %v", msg.url, msg.err)
		} else {
			m.status = "Opened " + msg.url
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeAbout:
			m.mode = modeList
			return m, nil
		default:
			return m.updateList(msg)
		}
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeAdd:
		m, cmd = m.updateFormInput(msg)
	case modeList:
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

func (m popupModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		if tool, ok := m.current(); ok {
			m.errMsg = ""
			return m, m.openCmd(tool.URL)
		}
		return m, nil
	case tea.KeyUp, tea.KeyCtrlP:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case tea.KeyDown, tea.KeyCtrlN:
		if m.cursor < len(m.tools)-1 {
			m.cursor++
		}
		return m, nil
	case tea.KeyCtrlA:
		m.mode = modeAdd
		m.errMsg = ""
		m.status = ""
		m.field = 0
		m.search.Blur()
		m.category.Blur()
		cmd := m.name.Focus()
		return m, cmd
	case tea.KeyCtrlO:
		m.mode = modeAbout
		return m, nil
	case tea.KeyCtrlS:
		return m, m.openCmd(SuggestURL)
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.status = ""
		m.recompute()
	}
	return m, cmd
}

func (m popupModel) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.errMsg = ""
		m.resetForm()
		cmd := m.search.Focus()
		return m, cmd
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		cmd := m.focusField(1 - m.field)
		return m, cmd
	case tea.KeyEnter:
		if m.field == 0 {
			cmd := m.focusField(1)
			return m, cmd
		}
		return m.submit()
	}
	var cmd tea.Cmd
	m, cmd = m.updateFormInput(msg)
	return m, cmd
}

func (m popupModel) updateFormInput(msg tea.Msg) (popupModel, tea.Cmd) {
	var cmd tea.Cmd
	if m.field == 0 {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.category, cmd = m.category.Update(msg)
	}
	return m, cmd
}

func (m *popupModel) focusField(field int) tea.Cmd {
	m.field = field
	if field == 0 {
		m.category.Blur()
		return m.name.Focus()
	}
	m.name.Blur()
	return m.category.Focus()
}

func (m popupModel) submit() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.name.Value())
	if name == "" {
		m.errMsg = "Name is required."
		return m, nil
	}
	if m.site == "" {
		m.errMsg = "No active site to add."
		return m, nil
	}
	m.errMsg = ""
	return m, m.appendCmd(store.UserTool{
		Name:     name,
		URL:      m.site,
		Category: strings.TrimSpace(m.category.Value()),
	})
}

func (m *popupModel) resetForm() {
	m.name.SetValue("")
	m.category.SetValue("")
	m.name.Blur()
	m.category.Blur()
	m.field = 0
}

func (m *popupModel) recompute() {
	m.view = catalog.ComputeView(m.static, store.Tools(m.users), m.search.Value(), m.site, m.grouping)
	m.tools = m.view.Tools()
	if m.cursor >= len(m.tools) {
		m.cursor = len(m.tools) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m popupModel) current() (catalog.Tool, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tools) {
		return catalog.Tool{}, false
	}
	return m.tools[m.cursor], true
}

func (m popupModel) View() string {
	if m.quitting {
		return ""
	}
	switch m.mode {
	case modeAdd:
		return m.viewAdd()
	case modeAbout:
		return m.viewAbout()
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("unext"))
	b.WriteString("\n")
	b.WriteString(m.search.View())
	b.WriteString(m.styles.count.Render(fmt.Sprintf(" (%d)", m.view.Total)))
	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("Current site: " + orDash(m.site)))
	b.WriteString("\n\n")

	lines, cursorLine := m.listLines()
	if len(lines) == 0 {
		lines = []string{m.styles.muted.Render("No tools found.")}
	}
	for _, line := range window(lines, cursorLine, m.listHeight()) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.error.Render(m.errMsg))
	} else if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.status.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.hint.Render("enter open | ctrl+a add current site | ctrl+s suggest a tool | ctrl+o about | esc quit"))
	return b.String()
}

func (m popupModel) listLines() ([]string, int) {
	var lines []string
	cursorLine := 0
	index := 0
	for i, group := range m.view.Groups {
		if i > 0 && m.view.Grouping == catalog.GroupBinary && m.view.Separated() {
			lines = append(lines, m.styles.muted.Render(strings.Repeat("─", 24)))
		}
		header := m.styles.group
		if group.Matched {
			header = m.styles.matched
		}
		if m.view.Grouping != catalog.GroupBinary || m.view.Separated() {
			lines = append(lines, header.Render(group.Name))
		}
		for _, tool := range group.Tools {
			cursor := " "
			style := m.styles.item
			if index == m.cursor {
				cursor = ">"
				style = m.styles.itemActive
				cursorLine = len(lines)
			}
			line := fmt.Sprintf("%s %s", m.styles.cursor.Render(cursor), style.Render(tool.Name))
			if domain := catalog.ExtractDomain(tool.URL); domain != "" {
				line += " " + m.styles.muted.Render(domain)
			}
			if tool.Description != "" {
				line += " " + m.styles.description.Render(tool.Description)
			}
			lines = append(lines, line)
			index++
		}
	}
	return lines, cursorLine
}

func (m popupModel) listHeight() int {
	if m.height <= 0 {
		return 0
	}
	// title, search, site, blank, status, hint
	height := m.height - 6
	if height < 1 {
		height = 1
	}
	return height
}

func window(lines []string, focus, height int) []string {
	if height <= 0 || height >= len(lines) {
		return lines
	}
	start := 0
	if focus >= height {
		start = focus - height + 1
	}
	return lines[start : start+height]
}

func (m popupModel) viewAdd() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Add Current Site"))
	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("URL: " + orDash(m.site)))
	b.WriteString("\n\n")
	b.WriteString(m.name.View())
	b.WriteString("\n")
	b.WriteString(m.category.View())
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.error.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.hint.Render("tab switch field | enter save | esc cancel"))
	return b.String()
}

func (m popupModel) viewAbout() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("About"))
	b.WriteString("\n\n")
	for _, line := range AboutLines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.hint.Render("press any key to go back"))
	return b.String()
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

type popupStyles struct {
	title       lipgloss.Style
	count       lipgloss.Style
	group       lipgloss.Style
	matched     lipgloss.Style
	item        lipgloss.Style
	itemActive  lipgloss.Style
	cursor      lipgloss.Style
	description lipgloss.Style
	status      lipgloss.Style
	hint        lipgloss.Style
	error       lipgloss.Style
	muted       lipgloss.Style
}

func defaultPopupStyles() popupStyles {
	return popupStyles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		count:       lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		group:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		matched:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		item:        lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Underline(true),
		itemActive:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		cursor:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		description: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		status:      lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		hint:        lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		error:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
