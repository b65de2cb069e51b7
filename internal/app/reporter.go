package app

import (
	"github.com/unextension/unext/internal/catalog"
	"github.com/unextension/unext/internal/store"
)

type Reporter interface {
	Info(message string)
	View(view catalog.View, currentSite string)
	Added(tool store.UserTool, total int)
	Imported(path string, count int)
	Changed(tools []store.UserTool)
	Cleared()
}

type noopReporter struct{}

func (n noopReporter) Info(string)               {}
func (n noopReporter) View(catalog.View, string) {}
func (n noopReporter) Added(store.UserTool, int) {}
func (n noopReporter) Imported(string, int)      {}
func (n noopReporter) Changed([]store.UserTool)  {}
func (n noopReporter) Cleared()                  {}

func ensureReporter(reporter Reporter) Reporter {
	if reporter == nil {
		return noopReporter{}
	}
	return reporter
}
