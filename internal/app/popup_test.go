package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

type fakePopupDeps struct {
	site    string
	users   []store.UserTool
	opened  []string
	appends []store.UserTool
}

func (f *fakePopupDeps) deps() popupDeps {
	return popupDeps{
		resolveSite: func(context.Context) string { return f.site },
		loadUsers: func(context.Context) ([]store.UserTool, error) {
			return append([]store.UserTool(nil), f.users...), nil
		},
		appendUser: func(_ context.Context, tool store.UserTool) ([]store.UserTool, error) {
			if strings.TrimSpace(tool.Name) == "" {
				return nil, store.ErrEmptyName
			}
			f.appends = append(f.appends, tool)
			f.users = append(f.users, tool)
			return append([]store.UserTool(nil), f.users...), nil
		},
		openURL: func(url string) error {
			f.opened = append(f.opened, url)
			return nil
		},
	}
}

func update(t *testing.T, m popupModel, msg tea.Msg) (popupModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(popupModel)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return model, cmd
}

func typeText(t *testing.T, m popupModel, text string) popupModel {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func newTestPopup(f *fakePopupDeps) popupModel {
	return newPopupModel(context.Background(), f.deps(), testStatic(), catalog.GroupByCategory)
}

func TestPopupLoadsSiteAndUsers(t *testing.T) {
	f := &fakePopupDeps{site: "https://www.youtube.com/watch?v=1", users: []store.UserTool{{Name: "Mine", URL: "https://mine.dev"}}}
	m := newTestPopup(f)

	m, _ = update(t, m, m.resolveSiteCmd()())
	m, _ = update(t, m, m.loadUsersCmd()())

	if m.site != f.site {
		t.Fatalf("expected site %q, got %q", f.site, m.site)
	}
	if m.view.Total != 4 {
		t.Fatalf("expected 4 tools, got %d", m.view.Total)
	}
	found := false
	for _, group := range m.view.Groups {
		if group.Name == catalog.MatchedGroup {
			found = len(group.Tools) == 1 && group.Tools[0].Name == "Get YouTube Thumbnail"
		}
	}
	if !found {
		t.Fatalf("expected youtube tool in matched group, got %+v", m.view.Groups)
	}
	if !strings.Contains(m.View(), catalog.MatchedGroup) {
		t.Fatalf("expected view to render matched group")
	}
}

func TestPopupSearchFilters(t *testing.T) {
	f := &fakePopupDeps{}
	m := newTestPopup(f)
	m = typeText(t, m, "FAVICON")
	if m.view.Total != 1 || m.tools[0].Name != "Get Favicon" {
		t.Fatalf("expected favicon tool only, got %+v", m.tools)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected open command")
	}
	m, _ = update(t, m, cmd())
	if len(f.opened) != 1 || f.opened[0] != "http://www.getfavicon.org/" {
		t.Fatalf("unexpected opened urls %v", f.opened)
	}
	if !strings.Contains(m.status, "Opened") {
		t.Fatalf("expected status after open, got %q", m.status)
	}
}

func TestPopupCursorMovement(t *testing.T) {
	m := newTestPopup(&fakePopupDeps{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != len(m.tools)-1 {
		t.Fatalf("expected cursor clamped at %d, got %d", len(m.tools)-1, m.cursor)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != len(m.tools)-2 {
		t.Fatalf("expected cursor to move up, got %d", m.cursor)
	}
	m = typeText(t, m, "squoosh")
	if m.cursor != 0 {
		t.Fatalf("expected cursor clamped after filtering, got %d", m.cursor)
	}
}

func TestPopupAddCurrentSite(t *testing.T) {
	f := &fakePopupDeps{site: "https://example.com"}
	m := newTestPopup(f)
	m, _ = update(t, m, m.resolveSiteCmd()())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	if m.mode != modeAdd {
		t.Fatalf("expected add mode")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.errMsg != "Name is required." {
		t.Fatalf("expected name validation, got %q", m.errMsg)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = typeText(t, m, "My Tool")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.field != 1 {
		t.Fatalf("expected enter to move to category field")
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected append command")
	}
	m, _ = update(t, m, cmd())

	want := store.UserTool{Name: "My Tool", URL: "https://example.com", Category: ""}
	if len(f.appends) != 1 || f.appends[0] != want {
		t.Fatalf("unexpected appended tools %+v", f.appends)
	}
	if m.mode != modeList || m.status != "Added My Tool" {
		t.Fatalf("expected list mode with status, got mode=%d status=%q", m.mode, m.status)
	}

	m = typeText(t, m, "my tool")
	if m.view.Total != 1 || m.tools[0].Source != catalog.SourceUser {
		t.Fatalf("expected search to find the new user tool, got %+v", m.tools)
	}
}

func TestPopupAddWithoutSite(t *testing.T) {
	m := newTestPopup(&fakePopupDeps{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	m = typeText(t, m, "x")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no append without an active site")
	}
	if m.errMsg == "" {
		t.Fatalf("expected error message")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeList || m.errMsg != "" {
		t.Fatalf("expected esc to return to list")
	}
}

func TestPopupExternalChange(t *testing.T) {
	m := newTestPopup(&fakePopupDeps{})
	m, _ = update(t, m, usersChangedMsg{tools: []store.UserTool{{Name: "Remote", URL: "https://remote.dev"}}})
	if m.view.Total != 4 {
		t.Fatalf("expected external tool to be merged, got %d tools", m.view.Total)
	}
}

func TestPopupLoadError(t *testing.T) {
	m := newTestPopup(&fakePopupDeps{})
	m, _ = update(t, m, usersLoadedMsg{err: errors.New("disk on fire")})
	if !strings.Contains(m.View(), "disk on fire") {
		t.Fatalf("expected load error in view")
	}
}

func TestPopupAboutAndQuit(t *testing.T) {
	m := newTestPopup(&fakePopupDeps{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if !strings.Contains(m.View(), "Made by") {
		t.Fatalf("expected about view")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.mode != modeList {
		t.Fatalf("expected any key to close about")
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil || !m.quitting {
		t.Fatalf("expected esc to quit")
	}
}

func TestWindow(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}
	if got := window(lines, 4, 2); strings.Join(got, "") != "de" {
		t.Fatalf("unexpected window %v", got)
	}
	if got := window(lines, 0, 2); strings.Join(got, "") != "ab" {
		t.Fatalf("unexpected window %v", got)
	}
	if got := window(lines, 3, 0); len(got) != 5 {
		t.Fatalf("expected all lines without height")
	}
}
