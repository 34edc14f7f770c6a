package domain

import (
	"strings"
	"time"
)

// HistoryRecord is the persisted form of an executed proposal. The JSON layout
// is the wire shape shared with the history API and JSONL exports.
type HistoryRecord struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId,omitempty"`
	UserInput     string    `json:"userInput"`
	Command       string    `json:"command"`
	Success       bool      `json:"success"`
	Output        *string   `json:"output"`
	Error         *string   `json:"error"`
	ExecutionTime float64   `json:"executionTime"`
	Timestamp     time.Time `json:"timestamp"`
	RiskLevel     RiskLevel `json:"riskLevel,omitempty"`
}

// Matches reports whether the record contains search in its input or command,
// case-insensitively. An empty search matches everything.
func (r HistoryRecord) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.UserInput), search) ||
		strings.Contains(strings.ToLower(r.Command), search)
}

// HistoryQuery selects one page of history.
type HistoryQuery struct {
	Page     int
	PageSize int
	Search   string
}

// Normalize applies the default page size and clamps the page to 1.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultHistoryPageSize
	}
	if q.PageSize > MaxHistoryPageSize {
		q.PageSize = MaxHistoryPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset returns the number of records preceding the page.
func (q HistoryQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// HistoryPage is what a history store returns for one query.
type HistoryPage struct {
	Items []HistoryRecord
	Total int
}
