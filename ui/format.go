package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"canmon/catalog"
	"canmon/pipeline"
)

// FormatStats renders the aggregate view as display lines for the stats pane.
func FormatStats(stats pipeline.StatsView, state pipeline.State, size, capacity int) []string {
	origin := "local window"
	if stats.Remote {
		origin = "remote aggregate"
	}
	lines := []string{
		fmt.Sprintf("State:     %s", state),
		fmt.Sprintf("Buffer:    %s / %s frames", humanize.Comma(int64(size)), humanize.Comma(int64(capacity))),
		fmt.Sprintf("Stats:     %s", origin),
		fmt.Sprintf("Frames:    %s", humanize.Comma(int64(stats.Total))),
		fmt.Sprintf("Errors:    %s", humanize.Comma(int64(stats.Errors))),
		fmt.Sprintf("Classes:   %s", humanize.Comma(int64(stats.UniqueClasses))),
		fmt.Sprintf("Lifetime:  %s", humanize.Comma(int64(stats.LifetimeTotal))),
	}
	if stats.Dropped > 0 {
		lines = append(lines, fmt.Sprintf("Dropped:   %s (while paused)", humanize.Comma(int64(stats.Dropped))))
	}
	if stats.Malformed > 0 {
		lines = append(lines, fmt.Sprintf("Malformed: %s", humanize.Comma(int64(stats.Malformed))))
	}
	return lines
}

// FormatTopClasses renders the top-K class counts, one line per class, with
// catalog acronyms when available.
func FormatTopClasses(stats pipeline.StatsView, cat *catalog.Catalog) []string {
	if len(stats.TopClasses) == 0 {
		return []string{"(no traffic)"}
	}
	lines := make([]string, 0, len(stats.TopClasses))
	for i, c := range stats.TopClasses {
		name := c.Class
		if cat != nil {
			name = cat.DisplayName(c.Class)
		}
		lines = append(lines, fmt.Sprintf("%2d. %-24s %s", i+1, name, humanize.Comma(int64(c.Count))))
	}
	return lines
}
