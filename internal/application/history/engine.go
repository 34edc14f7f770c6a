// Package history pages, groups, deletes and re-runs past executions on top
// of a history store.
package history

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Reexecutor re-enters the command pipeline with an already translated
// command. *pipeline.Orchestrator satisfies it.
type Reexecutor interface {
	Resubmit(ctx context.Context, intent, command string, risk domain.RiskLevel) (domain.Turn, error)
}

// Page is the displayed slice of history.
type Page struct {
	Items    []domain.HistoryRecord
	Total    int
	Page     int
	PageSize int
}

// Group is one recency bucket.
type Group struct {
	Label string
	Items []domain.HistoryRecord
}

// Recency bucket labels.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupEarlier   = "Earlier"
)

// Config carries the engine's collaborators.
type Config struct {
	Store    ports.HistoryStore
	Pipeline Reexecutor
	Logger   ports.Logger
	PageSize int
	// ReconfirmRisk re-runs commands at their recorded risk instead of safe.
	ReconfirmRisk bool
}

// Engine holds the displayed history view for one surface.
type Engine struct {
	store     ports.HistoryStore
	pipeline  Reexecutor
	logger    ports.Logger
	pageSize  int
	reconfirm bool

	mu       sync.Mutex
	items    []domain.HistoryRecord
	total    int
	page     int
	search   string
	selected string
}

// NewEngine validates cfg. Pipeline may be nil when re-execution is not offered.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Logger == nil {
		return nil, errors.New("history.Engine dependencies not satisfied")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = domain.DefaultHistoryPageSize
	}
	return &Engine{
		store:     cfg.Store,
		pipeline:  cfg.Pipeline,
		logger:    cfg.Logger,
		pageSize:  pageSize,
		reconfirm: cfg.ReconfirmRisk,
	}, nil
}

// FetchPage queries one page and replaces the displayed view with it.
func (e *Engine) FetchPage(ctx context.Context, page, pageSize int, search string) (Page, error) {
	if pageSize <= 0 {
		pageSize = e.pageSize
	}
	query := domain.HistoryQuery{Page: page, PageSize: pageSize, Search: strings.TrimSpace(search)}.Normalize()
	result, err := e.store.Query(ctx, query)
	if err != nil {
		return Page{}, domain.NewError(domain.KindPersistence, "fetch history", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append([]domain.HistoryRecord(nil), result.Items...)
	e.total = result.Total
	e.page = query.Page
	e.pageSize = query.PageSize
	e.search = query.Search
	return e.viewLocked(), nil
}

// LoadMore appends the next page to the displayed view. Optimistic deletes
// shift later records up, so the query resumes at the page holding the first
// record not yet shown; records already displayed are skipped.
func (e *Engine) LoadMore(ctx context.Context) (Page, error) {
	e.mu.Lock()
	if e.page == 0 {
		e.mu.Unlock()
		return e.FetchPage(ctx, 1, 0, "")
	}
	if len(e.items) >= e.total {
		view := e.viewLocked()
		e.mu.Unlock()
		return view, nil
	}
	query := domain.HistoryQuery{Page: len(e.items)/e.pageSize + 1, PageSize: e.pageSize, Search: e.search}
	e.mu.Unlock()

	for {
		result, err := e.store.Query(ctx, query)
		if err != nil {
			return Page{}, domain.NewError(domain.KindPersistence, "load more history", err)
		}

		e.mu.Lock()
		added := e.mergeLocked(result.Items)
		e.total = result.Total
		e.page = query.Page
		// new inserts push shown records onto later pages
		if added > 0 || query.Page*query.PageSize >= result.Total {
			view := e.viewLocked()
			e.mu.Unlock()
			return view, nil
		}
		e.mu.Unlock()
		query.Page++
	}
}

// Refresh re-queries the first page with the current search.
func (e *Engine) Refresh(ctx context.Context) (Page, error) {
	e.mu.Lock()
	pageSize, search := e.pageSize, e.search
	e.mu.Unlock()
	return e.FetchPage(ctx, 1, pageSize, search)
}

// View returns the displayed page without querying.
func (e *Engine) View() Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// HasMore reports whether LoadMore would add records.
func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items) < e.total
}

// Select marks a displayed record as selected. Unknown ids clear the selection.
func (e *Engine) Select(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexLocked(id) < 0 {
		e.selected = ""
		return false
	}
	e.selected = id
	return true
}

// Selected returns the selected record, if any.
func (e *Engine) Selected() (domain.HistoryRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(e.selected); i >= 0 {
		return e.items[i], true
	}
	return domain.HistoryRecord{}, false
}

// Delete removes a record from the view before asking the store to delete it.
// The local removal is not rolled back if the store fails. A record deleted by
// the store but not on display still lowers the total. An id the store does
// not know leaves the total unchanged and returns a NotFound error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	removed := false
	if i := e.indexLocked(id); i >= 0 {
		e.items = append(e.items[:i], e.items[i+1:]...)
		if e.total > 0 {
			e.total--
		}
		removed = true
	}
	if e.selected == id {
		e.selected = ""
	}
	e.mu.Unlock()

	ok, err := e.store.Delete(ctx, id)
	if err != nil {
		e.logger.Error("history delete failed", err, map[string]interface{}{"id": id})
		return domain.NewError(domain.KindPersistence, "delete history", err)
	}
	if !ok && !removed {
		e.logger.Warn("history record not found", map[string]interface{}{"id": id})
		return domain.NewError(domain.KindNotFound, "delete history", domain.ErrHistoryNotFound)
	}
	if ok && !removed {
		e.mu.Lock()
		if e.total > 0 {
			e.total--
		}
		e.mu.Unlock()
	}
	return nil
}

// ReExecute sends a past command back through the pipeline without
// translating it again. The proposal is treated as safe unless the engine is
// configured to re-confirm at the recorded risk.
func (e *Engine) ReExecute(ctx context.Context, item domain.HistoryRecord) (domain.Turn, error) {
	if e.pipeline == nil {
		return domain.Turn{}, domain.NewError(domain.KindInvalidState, "re-execute", errors.New("no pipeline attached"))
	}
	risk := domain.RiskSafe
	if e.reconfirm && item.RiskLevel != "" {
		risk = domain.ParseRiskLevel(string(item.RiskLevel))
	}
	e.logger.Info("re-executing history record", map[string]interface{}{
		"id":   item.ID,
		"risk": string(risk),
	})
	return e.pipeline.Resubmit(ctx, item.UserInput, item.Command, risk)
}

// GroupByRecency buckets items by calendar day in now's location. Buckets are
// ordered Today, Yesterday, Earlier, empty ones are omitted, and items inside
// a bucket are newest first.
func GroupByRecency(items []domain.HistoryRecord, now time.Time) []Group {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	buckets := map[string][]domain.HistoryRecord{}
	for _, rec := range items {
		ts := rec.Timestamp.In(loc)
		switch {
		case !ts.Before(today):
			buckets[GroupToday] = append(buckets[GroupToday], rec)
		case !ts.Before(yesterday):
			buckets[GroupYesterday] = append(buckets[GroupYesterday], rec)
		default:
			buckets[GroupEarlier] = append(buckets[GroupEarlier], rec)
		}
	}

	var groups []Group
	for _, label := range []string{GroupToday, GroupYesterday, GroupEarlier} {
		bucket := buckets[label]
		if len(bucket) == 0 {
			continue
		}
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Timestamp.After(bucket[j].Timestamp)
		})
		groups = append(groups, Group{Label: label, Items: bucket})
	}
	return groups
}

// mergeLocked appends records not already displayed and reports how many.
func (e *Engine) mergeLocked(items []domain.HistoryRecord) int {
	seen := make(map[string]struct{}, len(e.items))
	for _, rec := range e.items {
		seen[rec.ID] = struct{}{}
	}
	added := 0
	for _, rec := range items {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		e.items = append(e.items, rec)
		added++
	}
	return added
}

func (e *Engine) viewLocked() Page {
	return Page{
		Items:    append([]domain.HistoryRecord(nil), e.items...),
		Total:    e.total,
		Page:     e.page,
		PageSize: e.pageSize,
	}
}

func (e *Engine) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, rec := range e.items {
		if rec.ID == id {
			return i
		}
	}
	return -1
}
