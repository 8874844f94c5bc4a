package storage

import (
	"sort"
	"time"

	"github.com/raterudder/gridcast/pkg/types"
)

// inRange keeps runs created in [start, end) and sorts them oldest first.
func inRange(runs []types.ForecastRun, start, end time.Time) []types.ForecastRun {
	out := runs[:0]
	for _, r := range runs {
		if !r.CreatedAt.Before(start) && r.CreatedAt.Before(end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
