package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket represents the aggregated response count for one status code.
type StatusBucket struct {
	Code  string
	Count int
}

// FlattenStatusBuckets converts a status code->count map into a sorted slice.
// Rows are sorted by descending count, then by numeric code for stability.
func FlattenStatusBuckets(buckets map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(buckets))
	for code, count := range buckets {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return codeLess(rows[i].Code, rows[j].Code)
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

func codeLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
