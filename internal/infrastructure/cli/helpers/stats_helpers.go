package helpers

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/doeshing/shai-ops/internal/domain"
)

// CommandStatistic represents usage statistics for a command
type CommandStatistic struct {
	Command string
	Count   int
}

// HistoryStats summarizes a set of history records.
type HistoryStats struct {
	Total        int
	Successful   int
	TotalSeconds float64
	CommandFreq  map[string]int
	RiskCounts   map[domain.RiskLevel]int
}

// AnalyzeHistory computes statistics over records.
func AnalyzeHistory(records []domain.HistoryRecord) HistoryStats {
	stats := HistoryStats{
		CommandFreq: make(map[string]int),
		RiskCounts:  make(map[domain.RiskLevel]int),
	}
	for _, rec := range records {
		stats.Total++
		if rec.Success {
			stats.Successful++
		}
		stats.TotalSeconds += rec.ExecutionTime
		stats.CommandFreq[rec.Command]++
		risk := rec.RiskLevel
		if risk == "" {
			risk = domain.RiskSafe
		}
		stats.RiskCounts[risk]++
	}
	return stats
}

// SuccessRate returns the success percentage.
func (s HistoryStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// AverageSeconds returns the mean execution time.
func (s HistoryStats) AverageSeconds() float64 {
	if s.Total == 0 {
		return 0
	}
	return s.TotalSeconds / float64(s.Total)
}

// TopCommands returns the limit most frequent commands, ties broken by name.
// A limit of zero or less returns all of them.
func (s HistoryStats) TopCommands(limit int) []CommandStatistic {
	stats := make([]CommandStatistic, 0, len(s.CommandFreq))
	for cmd, count := range s.CommandFreq {
		stats = append(stats, CommandStatistic{Command: cmd, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Command < stats[j].Command
		}
		return stats[i].Count > stats[j].Count
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// RenderHistoryStats prints the summary, top commands, risk distribution and undo hints.
func RenderHistoryStats(out io.Writer, stats HistoryStats, records []domain.HistoryRecord) {
	fmt.Fprintf(out, "Entries analyzed: %d\nSuccess rate: %.1f%%\nAverage time: %.2fs\n",
		stats.Total, stats.SuccessRate(), stats.AverageSeconds())

	fmt.Fprintln(out, "Top commands:")
	for _, stat := range stats.TopCommands(5) {
		fmt.Fprintf(out, "  %s (%d)\n", stat.Command, stat.Count)
	}

	fmt.Fprintln(out, "Risk distribution:")
	for _, level := range []domain.RiskLevel{domain.RiskSafe, domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical} {
		if n := stats.RiskCounts[level]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", level, n)
		}
	}

	if hints := DeriveUndoHints(records); len(hints) > 0 {
		fmt.Fprintln(out, "Undo hints:")
		for _, hint := range hints {
			fmt.Fprintf(out, "  - %s\n", hint)
		}
	}
}

var undoHints = []struct {
	prefix string
	hint   string
}{
	{"git ", "Use `git status`, `git reflog`, or `git restore` to inspect and undo git changes."},
	{"kubectl ", "Use `kubectl rollout undo` or `kubectl get events` to recover from cluster issues."},
	{"rm ", "Restore files via backups or `git checkout -- <path>` if tracked."},
	{"docker ", "Use `docker ps -a` and `docker logs` to review container history before repeating."},
}

// DeriveUndoHints returns sorted, unique hints for command families seen in records.
func DeriveUndoHints(records []domain.HistoryRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		command := strings.ToLower(strings.TrimSpace(rec.Command))
		for _, h := range undoHints {
			if strings.HasPrefix(command, h.prefix) {
				seen[h.hint] = struct{}{}
			}
		}
	}
	hints := make([]string, 0, len(seen))
	for hint := range seen {
		hints = append(hints, hint)
	}
	sort.Strings(hints)
	return hints
}
