// Package report renders a session's call graph as text and as profiles.
package report

import (
	"fmt"
	"strings"

	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/metrics"
	"github.com/getsentry/tickprof/internal/session"
)

// DefaultBudget is the table size used when the caller doesn't pass one.
const DefaultBudget = 1000

const tableHeader = "calls\t\ttime\t\tavg\t\tfunction"

// Table renders one line per function, by descending total time, until the
// next line would exceed maxChars. The header and footer are always present
// and are accounted for first.
func Table(s *session.Session, tick int64, maxChars int) string {
	if s == nil {
		return errorutil.NotActive
	}
	if maxChars <= 0 {
		maxChars = DefaultBudget
	}

	elapsed := s.ElapsedTicks(tick)
	var perTick float64
	if elapsed > 0 {
		perTick = s.TotalTime / float64(elapsed)
	}
	footer := fmt.Sprintf("Avg: %.2f\tTotal: %.2f\tTicks: %d", perTick, s.TotalTime, elapsed)

	var sb strings.Builder
	sb.WriteString(tableHeader)
	sb.WriteByte('\n')
	length := len(tableHeader) + 1 + len(footer)

	for _, f := range metrics.FromGraph(s.Graph) {
		line := fmt.Sprintf("%d\t\t%.1f\t\t%.3f\t\t%s", f.Calls, f.Sum, f.Avg, f.Name)
		if length+len(line)+1 >= maxChars {
			break
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		length += len(line) + 1
	}
	sb.WriteString(footer)
	return sb.String()
}
