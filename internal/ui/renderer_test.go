package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

func TestRendererView(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(Options{NoColor: true, Out: &out})
	tools := []catalog.Tool{
		{Name: "Get YouTube Thumbnail", URL: "https://youtube-thumbnail-grabber.com", ApplicableSites: []string{"youtube.com"}},
		{Name: "Squoosh", URL: "https://squoosh.app", Description: "Compress images with ease"},
	}
	view := catalog.ComputeView(tools, []catalog.Tool{{Name: "Mine", URL: "https://mine.dev"}}, "", "https://youtube.com/watch", catalog.GroupBinary)
	r.View(view, "https://youtube.com/watch")

	got := out.String()
	for _, want := range []string{"site: https://youtube.com/watch", "Matched Tools", "Other Tools", "-----", "Compress images with ease", "(yours)", "3 tools"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Index(got, "Matched Tools") > strings.Index(got, "Other Tools") {
		t.Fatalf("expected matched tools before other tools:\n%s", got)
	}
}

func TestRendererBinaryWithoutMatchesHasNoHeaders(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(Options{NoColor: true, Out: &out})
	view := catalog.ComputeView([]catalog.Tool{{Name: "Squoosh", URL: "https://squoosh.app"}}, nil, "", "", catalog.GroupBinary)
	r.View(view, "")
	if strings.Contains(out.String(), "Other Tools") {
		t.Fatalf("expected no header without matched tools:\n%s", out.String())
	}
}

func TestRendererEmptyView(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(Options{NoColor: true, Out: &out})
	r.View(catalog.View{}, "")
	if !strings.Contains(out.String(), "no tools found") {
		t.Fatalf("expected empty message, got %q", out.String())
	}
}

func TestRendererStoreEvents(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(Options{NoColor: true, Out: &out})
	tool := store.UserTool{Name: "My Tool", URL: "https://example.com", Category: "Dev"}
	r.Added(tool, 1)
	r.Imported("tools.yaml", 2)
	r.Changed([]store.UserTool{tool})
	r.Cleared()
	got := out.String()
	for _, want := range []string{"added My Tool -> https://example.com [Dev]", "imported 2 tools from tools.yaml", "user tools: 1", "cleared user tools"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}
