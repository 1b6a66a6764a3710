package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"clanactivity/internal/activity"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func formatLastActive(member *activity.Member, loc *time.Location) string {
	if !member.Known() {
		return "never"
	}
	return member.LastActive.In(loc).Format("2006-01-02 15:04 MST")
}

// renderActivity prints the roster least recently active first, like the batch returns it.
func renderActivity(out io.Writer, members []*activity.Member, now time.Time) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Name", "Platform", "Last active", "Age"})
	for i, member := range members {
		t.AppendRow(table.Row{
			i + 1,
			member.Name,
			member.Platform,
			formatLastActive(member, now.Location()),
			member.Age(now),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d members", len(members))})
	t.Render()
}

func renderFailures(out io.Writer, failures []activity.Failure) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Endpoint", "Error"})
	for _, failure := range failures {
		endpoint := ""
		cause := failure.Err
		var resolveErr *activity.ResolveError
		if errors.As(failure.Err, &resolveErr) {
			endpoint = resolveErr.Endpoint
			cause = resolveErr.Err
		}
		t.AppendRow(table.Row{failure.Member.Name, endpoint, cause.Error()})
	}
	t.Render()
}

func renderRoster(out io.Writer, members []*activity.Member) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Platform", "Profile"})
	for _, member := range members {
		t.AppendRow(table.Row{member.Name, member.Platform, member.Profile})
	}
	t.Render()
}
