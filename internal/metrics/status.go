package metrics

import "sort"

// StatusBucket is the number of responses observed for one status code.
type StatusBucket struct {
	Code  string
	Count int
}

// SortedStatusCodes flattens a status code histogram into rows ordered by
// descending count, then by code.
func SortedStatusCodes(codes map[string]int) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
