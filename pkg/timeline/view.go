// Package timeline derives presentation state from raw extraction
// results. All transforms are pure; they are recomputed whenever their
// inputs change and never mutate their arguments.
package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/immodoc/immodoc/pkg/api"
)

// Category is the closed set of timeline categories.
type Category string

const (
	CategoryMeeting  Category = "meeting"
	CategoryPayment  Category = "payment"
	CategoryDeadline Category = "deadline"
	CategoryInfo     Category = "info"
)

// UnknownDateBucket groups items that carry no date.
const UnknownDateBucket = "unknown"

// timeSentinel sorts items without a time after all timed items on the
// same date.
const timeSentinel = "99:99"

// NormalizeCategory maps any category string into the closed set; any
// other value, including empty, becomes info.
func NormalizeCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryMeeting:
		return CategoryMeeting
	case CategoryPayment:
		return CategoryPayment
	case CategoryDeadline:
		return CategoryDeadline
	default:
		return CategoryInfo
	}
}

// SortItems returns the items sorted ascending by date, ties broken by
// time with missing times last.
func SortItems(items []api.TimelineItem) []api.TimelineItem {
	sorted := make([]api.TimelineItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := dateValue(sorted[i].DateISO), dateValue(sorted[j].DateISO)
		if ti != tj {
			return ti < tj
		}
		return timeValue(sorted[i].Time24h) < timeValue(sorted[j].Time24h)
	})
	return sorted
}

func dateValue(dateISO string) int64 {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(dateISO))
	if err != nil {
		// Undated items sort after everything else
		return int64(1) << 62
	}
	return parsed.Unix()
}

func timeValue(time24h string) string {
	trimmed := strings.TrimSpace(time24h)
	if trimmed == "" {
		return timeSentinel
	}
	return trimmed
}

// Filter restricts the timeline view. Category must exactly match the
// normalized category; Text is a case-insensitive substring match over
// title and description. Both apply together.
type Filter struct {
	Category Category
	Text     string
}

// FilterItems applies the filter to the items.
func FilterItems(items []api.TimelineItem, filter Filter) []api.TimelineItem {
	needle := strings.ToLower(strings.TrimSpace(filter.Text))
	var out []api.TimelineItem
	for _, item := range items {
		if filter.Category != "" && NormalizeCategory(item.Category) != filter.Category {
			continue
		}
		if needle != "" {
			haystack := strings.ToLower(item.Title + " " + item.Description)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// Group is one date bucket of the grouped timeline.
type Group struct {
	DateISO string
	Items   []api.TimelineItem
}

// GroupByDate partitions sorted items by date, preserving sorted order as
// group order. Items without a date land in the unknown bucket.
func GroupByDate(sorted []api.TimelineItem) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, item := range sorted {
		bucket := strings.TrimSpace(item.DateISO)
		if bucket == "" {
			bucket = UnknownDateBucket
		}
		at, ok := index[bucket]
		if !ok {
			at = len(groups)
			index[bucket] = at
			groups = append(groups, Group{DateISO: bucket})
		}
		groups[at].Items = append(groups[at].Items, item)
	}
	return groups
}

// Categories returns the distinct normalized categories present in the
// unfiltered item list, sorted lexicographically. It feeds the filter
// control, so it always reflects the full set.
func Categories(items []api.TimelineItem) []Category {
	seen := make(map[Category]struct{})
	for _, item := range items {
		seen[NormalizeCategory(item.Category)] = struct{}{}
	}
	out := make([]Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DocumentIndex maps document ids to their records so chat sources can
// resolve filenames without repeated scans.
func DocumentIndex(docs []api.Document) map[int64]api.Document {
	index := make(map[int64]api.Document, len(docs))
	for _, doc := range docs {
		index[doc.DocumentID] = doc
	}
	return index
}
