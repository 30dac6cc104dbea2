package engine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cachegate/cachegate/internal/entrystore"
)

// FilterScope selects which fields SnapshotQuery.Filter is matched against.
type FilterScope string

const (
	FilterScopeKey   FilterScope = "key"
	FilterScopeValue FilterScope = "value"
	FilterScopeBoth  FilterScope = "both"
)

// SortField selects which CacheEntry field Snapshot orders by.
type SortField string

const (
	SortByKey         SortField = "key"
	SortByValue       SortField = "value"
	SortByLoadedAt    SortField = "loadedAt"
	SortByAccessCount SortField = "accessCount"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SnapshotQuery parameterizes Engine.Snapshot. Zero values of SortBy,
// SortDir, FilterScope and FilterRegex behave as the documented REST
// defaults (key, asc, key, false). Limit does not: a zero Limit here means
// "unbounded", not the REST default of 1000, so callers that want every
// default should use DefaultSnapshotQuery rather than a bare zero value.
type SnapshotQuery struct {
	Limit       int
	SortBy      SortField
	SortDir     SortDirection
	Filter      string
	FilterScope FilterScope
	FilterRegex bool
}

// DefaultSnapshotQuery matches the REST surface's documented defaults.
func DefaultSnapshotQuery() SnapshotQuery {
	return SnapshotQuery{
		Limit:       1000,
		SortBy:      SortByKey,
		SortDir:     SortAsc,
		FilterScope: FilterScopeKey,
		FilterRegex: false,
	}
}

// CacheEntry is a derived, point-in-time view of one key for snapshots.
type CacheEntry struct {
	Key            string
	Value          string
	LoadedAtMillis int64
	AccessCount    int64
}

// CacheSnapshot is a point-in-time, filterable, sortable, limited view of a
// store's contents and counters.
type CacheSnapshot struct {
	Statistics     CacheStatistics
	Entries        []CacheEntry
	TotalEntries   int
	MatchedEntries int
}

// buildSnapshot collects store's entries, applies q's filter, counts
// matches, sorts, and caps to q.Limit (when Limit > 0). Ordering between
// snapshot build and concurrent mutations is consistent only for the
// initial map-iteration: the result is point-in-time best-effort.
func buildSnapshot(name string, store *entrystore.Store, q SnapshotQuery) (CacheSnapshot, error) {
	raw := store.Entries()
	total := len(raw)

	matcher, err := newMatcher(q.Filter, q.FilterScope, q.FilterRegex)
	if err != nil {
		return CacheSnapshot{}, err
	}

	entries := make([]CacheEntry, 0, len(raw))
	for _, e := range raw {
		if matcher(e.Key, e.Value) {
			entries = append(entries, CacheEntry{
				Key:            e.Key,
				Value:          e.Value,
				LoadedAtMillis: e.LoadedAtMillis,
				AccessCount:    e.AccessCount,
			})
		}
	}
	matched := len(entries)

	sortEntries(entries, q.SortBy, q.SortDir)

	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	return CacheSnapshot{
		Statistics:     statsFromStore(name, store),
		Entries:        entries,
		TotalEntries:   total,
		MatchedEntries: matched,
	}, nil
}

// newMatcher builds a case-insensitive predicate for filter over scope,
// either literal substring or regular expression.
func newMatcher(filter string, scope FilterScope, isRegex bool) (func(key, value string) bool, error) {
	if filter == "" {
		return func(string, string) bool { return true }, nil
	}

	var test func(s string) bool
	if isRegex {
		re, err := regexp.Compile("(?i)" + filter)
		if err != nil {
			return nil, err
		}
		test = re.MatchString
	} else {
		lower := strings.ToLower(filter)
		test = func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
	}

	switch scope {
	case FilterScopeValue:
		return func(_, value string) bool { return test(value) }, nil
	case FilterScopeBoth:
		return func(key, value string) bool { return test(key) || test(value) }, nil
	default: // FilterScopeKey and unset
		return func(key, _ string) bool { return test(key) }, nil
	}
}

func sortEntries(entries []CacheEntry, field SortField, dir SortDirection) {
	ascending := func(i, j int) bool {
		switch field {
		case SortByValue:
			return strings.ToLower(entries[i].Value) < strings.ToLower(entries[j].Value)
		case SortByLoadedAt:
			return entries[i].LoadedAtMillis < entries[j].LoadedAtMillis
		case SortByAccessCount:
			return entries[i].AccessCount < entries[j].AccessCount
		default: // SortByKey and unset
			return strings.ToLower(entries[i].Key) < strings.ToLower(entries[j].Key)
		}
	}
	if dir == SortDesc {
		sort.SliceStable(entries, func(i, j int) bool { return ascending(j, i) })
		return
	}
	sort.SliceStable(entries, ascending)
}
