package ranking

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
)

type TimeWindow string

const (
	WindowAll   TimeWindow = "all"
	WindowToday TimeWindow = "today"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
)

func ParseTimeWindow(s string) (TimeWindow, error) {
	switch w := TimeWindow(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowAll, nil
	case WindowAll, WindowToday, WindowWeek, WindowMonth:
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown time window %q", apperr.ErrInvalidInput, s)
}

// Since returns the earliest creation time admitted by w, relative to the
// start of now's calendar day in now's location. ok is false for WindowAll.
func (w TimeWindow) Since(now time.Time) (since time.Time, ok bool) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch w {
	case WindowToday:
		return startOfDay, true
	case WindowWeek:
		return startOfDay.AddDate(0, 0, -7), true
	case WindowMonth:
		return startOfDay.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

// Filter applies the time window and the case-insensitive substring match on
// text, then orders by vote count descending. text is matched as given,
// surrounding spaces included. Equal counts keep their input order. The
// input slice is not modified.
func Filter(projects []domain.Project, text string, window TimeWindow, now time.Time) []domain.Project {
	since, bounded := window.Since(now)
	needle := strings.ToLower(text)

	out := make([]domain.Project, 0, len(projects))
	for _, p := range projects {
		if bounded && p.CreatedAt.Before(since) {
			continue
		}
		if needle != "" && !matchesText(p, needle) {
			continue
		}
		out = append(out, p)
	}

	slices.SortStableFunc(out, func(a, b domain.Project) int {
		return b.VoteCount - a.VoteCount
	})
	return out
}

func matchesText(p domain.Project, needle string) bool {
	return strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.OwnerName), needle)
}
