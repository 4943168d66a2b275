// Package roadmap turns a repository's labelled issues into a three-column
// roadmap: issues labelled "Roadmap: Now" / "Next" / "Later" become columns,
// and an optional "Roadmap Group: <name>" label partitions each column into
// named groups.
//
// The layout works in two passes. First the distinct group names across all
// three columns are collected; then each name becomes one global band sized
// by the largest member count any column has for it. Because the bands are
// global, a group occupies the same vertical slice in every column even when
// its cards sit in only one of them; columns with fewer cards leave
// whitespace, keeping rows aligned for visual scanning. Both the SVG and the
// HTML-map renderers consume the same band coordinates.
package roadmap

import (
	"sort"
	"strings"

	"github.com/rocketstack/roadmapper/internal/githubapi"
)

// Layout geometry, in SVG user units. Shared by all renderers.
const (
	ColumnHeaderHeight = 130
	CardSlotHeight     = 95
	GroupHeaderHeight  = 35
	InterGroupGap      = 10
)

// Column and grouping labels.
const (
	LabelNow   = "Roadmap: Now"
	LabelNext  = "Roadmap: Next"
	LabelLater = "Roadmap: Later"

	// GroupLabelPrefix marks a grouping label; the group name is the remainder.
	GroupLabelPrefix = "Roadmap Group: "

	// UngroupedLabel names the trailing band that collects issues without a
	// group label when at least one real group exists.
	UngroupedLabel = "Other"
)

// Item is an issue placed on the roadmap, annotated with the color of the
// column label that put it there.
type Item struct {
	githubapi.Issue
	LabelColor string
}

// Group is a named partition of one column.
type Group struct {
	Name  string
	Color string
	Items []Item
}

// Grouped is one column partitioned into groups and the ungrouped remainder.
// Item order within each bucket is the caller's order (issues are sorted by
// number before splitting).
type Grouped struct {
	Groups    []Group
	Ungrouped []Item
}

// Columns holds the three partitioned columns.
type Columns struct {
	Now   Grouped
	Next  Grouped
	Later Grouped
}

func (c *Columns) all() []*Grouped {
	return []*Grouped{&c.Now, &c.Next, &c.Later}
}

// Band is a horizontal slice shared across all three columns: the group (or
// "Other") named Name starts at YStart in every column and reserves MaxCards
// card slots.
type Band struct {
	Name       string
	Color      string
	YStart     int
	MaxCards   int
	BandHeight int
}

// Layout is the computed global geometry. When no column has any groups,
// HasGroups is false and the columns render flat starting at the column
// header, the backward-compatible simple case.
type Layout struct {
	HasGroups     bool
	Bands         []Band
	UngroupedBand *Band
	TotalHeight   int
}

// GroupItems partitions one column's items by their group label. Groups are
// sorted lexicographically by name; item order inside each bucket is
// preserved. The first label carrying the group prefix wins; the group's
// display color is taken from the first issue that introduces the group.
func GroupItems(items []Item) Grouped {
	byName := make(map[string]int)
	var grouped Grouped

	for _, item := range items {
		name, color, ok := groupLabel(item.Labels)
		if !ok {
			grouped.Ungrouped = append(grouped.Ungrouped, item)
			continue
		}
		idx, seen := byName[name]
		if !seen {
			idx = len(grouped.Groups)
			byName[name] = idx
			grouped.Groups = append(grouped.Groups, Group{Name: name, Color: color})
		}
		grouped.Groups[idx].Items = append(grouped.Groups[idx].Items, item)
	}

	sort.Slice(grouped.Groups, func(i, j int) bool {
		return grouped.Groups[i].Name < grouped.Groups[j].Name
	})
	return grouped
}

func groupLabel(labels []githubapi.Label) (name, color string, ok bool) {
	for _, l := range labels {
		if strings.HasPrefix(l.Name, GroupLabelPrefix) {
			return l.Name[len(GroupLabelPrefix):], l.Color, true
		}
	}
	return "", "", false
}

// SplitColumns sorts issues by number and partitions them into the three
// grouped columns. An issue can appear in more than one column if it carries
// multiple column labels.
func SplitColumns(issues []githubapi.Issue) Columns {
	sorted := make([]githubapi.Issue, len(issues))
	copy(sorted, issues)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	pick := func(labelName string) []Item {
		var items []Item
		for _, issue := range sorted {
			for _, l := range issue.Labels {
				if l.Name == labelName {
					items = append(items, Item{Issue: issue, LabelColor: l.Color})
					break
				}
			}
		}
		return items
	}

	return Columns{
		Now:   GroupItems(pick(LabelNow)),
		Next:  GroupItems(pick(LabelNext)),
		Later: GroupItems(pick(LabelLater)),
	}
}

// BuildGlobalLayout computes the synchronized band geometry for the three
// columns. See the package comment for the two-pass design.
func BuildGlobalLayout(cols Columns) Layout {
	all := cols.all()

	hasGroups := false
	for _, col := range all {
		if len(col.Groups) > 0 {
			hasGroups = true
			break
		}
	}

	if !hasGroups {
		maxCards := 0
		for _, col := range all {
			if n := len(col.Ungrouped); n > maxCards {
				maxCards = n
			}
		}
		return Layout{TotalHeight: ColumnHeaderHeight + maxCards*CardSlotHeight}
	}

	// Pass 1: the union of group names, with the first color seen per name.
	colorByName := make(map[string]string)
	var names []string
	for _, col := range all {
		for _, g := range col.Groups {
			if _, seen := colorByName[g.Name]; !seen {
				colorByName[g.Name] = g.Color
				names = append(names, g.Name)
			}
		}
	}
	sort.Strings(names)

	cardCount := func(col *Grouped, name string) int {
		for _, g := range col.Groups {
			if g.Name == name {
				return len(g.Items)
			}
		}
		return 0
	}

	// Pass 2: stack the bands.
	layout := Layout{HasGroups: true}
	y := ColumnHeaderHeight

	for i, name := range names {
		if i > 0 {
			y += InterGroupGap
		}
		maxCards := 0
		for _, col := range all {
			if n := cardCount(col, name); n > maxCards {
				maxCards = n
			}
		}
		band := Band{
			Name:       name,
			Color:      colorByName[name],
			YStart:     y,
			MaxCards:   maxCards,
			BandHeight: GroupHeaderHeight + maxCards*CardSlotHeight,
		}
		layout.Bands = append(layout.Bands, band)
		y += band.BandHeight
	}

	maxUngrouped := 0
	for _, col := range all {
		if n := len(col.Ungrouped); n > maxUngrouped {
			maxUngrouped = n
		}
	}
	if maxUngrouped > 0 {
		y += InterGroupGap
		band := Band{
			Name:       UngroupedLabel,
			YStart:     y,
			MaxCards:   maxUngrouped,
			BandHeight: GroupHeaderHeight + maxUngrouped*CardSlotHeight,
		}
		layout.UngroupedBand = &band
		y += band.BandHeight
	}

	layout.TotalHeight = y
	return layout
}
