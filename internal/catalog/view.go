package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	MatchedGroup = "Matched Tools"
	OtherGroup   = "Other"
	OtherTools   = "Other Tools"
)

type Grouping string

const (
	GroupByCategory Grouping = "category"
	GroupBinary     Grouping = "binary"
)

func ParseGrouping(value string) (Grouping, error) {
	switch Grouping(strings.ToLower(strings.TrimSpace(value))) {
	case "", GroupByCategory:
		return GroupByCategory, nil
	case GroupBinary:
		return GroupBinary, nil
	default:
		return "", fmt.Errorf("unknown grouping %q (want %q or %q)", value, GroupByCategory, GroupBinary)
	}
}

type Group struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
	Tools   []Tool `json:"tools"`
}

type View struct {
	Grouping Grouping `json:"grouping"`
	Groups   []Group  `json:"groups"`
	Total    int      `json:"total"`
}

// Separated reports whether matched tools are followed by other tools.
func (v View) Separated() bool {
	if len(v.Groups) < 2 {
		return false
	}
	return v.Groups[0].Matched
}

func (v View) Tools() []Tool {
	out := make([]Tool, 0, v.Total)
	for _, group := range v.Groups {
		out = append(out, group.Tools...)
	}
	return out
}

// ExtractDomain returns the URL's hostname without a leading "www.", or "" when
// the URL has no host.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

func MatchesSearch(tool Tool, term string) bool {
	needle := strings.ToLower(term)
	if needle == "" {
		return true
	}
	fields := []string{tool.Name, tool.Description, tool.URL, tool.Category, ExtractDomain(tool.URL)}
	return lo.SomeBy(fields, func(field string) bool {
		return field != "" && strings.Contains(strings.ToLower(field), needle)
	})
}

func Matched(tool Tool, currentSite string) bool {
	if currentSite == "" {
		return false
	}
	return lo.SomeBy(tool.ApplicableSites, func(site string) bool {
		return site != "" && strings.Contains(currentSite, site)
	})
}

// ComputeView filters the merged catalog by term and groups it against currentSite.
// It keeps no state between calls.
func ComputeView(static, user []Tool, term, currentSite string, grouping Grouping) View {
	filtered := lo.Filter(Merge(static, user), func(tool Tool, _ int) bool {
		return MatchesSearch(tool, term)
	})

	view := View{Grouping: grouping, Total: len(filtered)}
	switch grouping {
	case GroupBinary:
		matched, unmatched := lo.FilterReject(filtered, func(tool Tool, _ int) bool {
			return Matched(tool, currentSite)
		})
		if len(matched) > 0 {
			view.Groups = append(view.Groups, Group{Name: MatchedGroup, Matched: true, Tools: matched})
		}
		if len(unmatched) > 0 {
			view.Groups = append(view.Groups, Group{Name: OtherTools, Tools: unmatched})
		}
	default:
		view.Grouping = GroupByCategory
		view.Groups = groupByCategory(filtered, currentSite)
	}
	return view
}

func groupByCategory(tools []Tool, currentSite string) []Group {
	var groups []Group
	index := map[string]int{}
	for _, tool := range tools {
		name := tool.Category
		matched := Matched(tool, currentSite)
		if matched {
			name = MatchedGroup
		} else if strings.TrimSpace(name) == "" {
			name = OtherGroup
		}
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, Group{Name: name, Matched: matched})
		}
		groups[pos].Tools = append(groups[pos].Tools, tool)
	}
	return groups
}
