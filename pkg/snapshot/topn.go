package snapshot

import "sort"

// Dimension selects the ranking key for a top-N cut. Four independent
// rankings are typically produced per scrape, not one merged list.
type Dimension string

const (
	ByCPU       Dimension = "cpu"
	ByMemory    Dimension = "memory"
	ByDiskRead  Dimension = "disk_read"
	ByDiskWrite Dimension = "disk_write"
)

// Dimensions lists every ranking in the order the exposition layer
// emits them.
var Dimensions = []Dimension{ByCPU, ByMemory, ByDiskRead, ByDiskWrite}

func (d Dimension) key(r Row) float64 {
	switch d {
	case ByMemory:
		return r.MemPct
	case ByDiskRead:
		return float64(r.DiskReadBytes)
	case ByDiskWrite:
		return float64(r.DiskWriteBytes)
	default:
		return r.CPUPct
	}
}

// Rank sorts rows by the dimension (descending, memory% as tie-break),
// truncates to n, and assigns 1-based ranks. The input is not modified;
// truncation happens before any per-row label work downstream, so
// output cardinality is bounded regardless of live process count.
func Rank(rows []Row, dim Dimension, n int) []Row {
	ranked := make([]Row, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := dim.key(ranked[i]), dim.key(ranked[j])
		if a != b {
			return a > b
		}
		return ranked[i].MemPct > ranked[j].MemPct
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
