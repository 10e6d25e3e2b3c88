// Package sorter orders a coil pool by up to nine weighted,
// directional factors with stable lexicographic tie-breaks.
package sorter

import (
	"sort"
	"strconv"

	"github.com/terminal-bench/tempermill/internal/domain"
)

const (
	DirAsc  = "asc"
	DirDesc = "desc"
)

// DefaultHardnessOrder maps hardness levels to a numeric rank.
func DefaultHardnessOrder() map[string]float64 {
	return map[string]float64{
		"soft": 1, "S": 1, "软": 1,
		"medium": 2, "M": 2, "中": 2,
		"hard": 3, "H": 3, "硬": 3,
	}
}

// DefaultSurfaceOrder maps surface grades to a numeric rank.
func DefaultSurfaceOrder() map[string]float64 {
	return map[string]float64{"FA": 4, "FB": 3, "FC": 2, "FD": 1}
}

// DefaultPriorities returns the nine default sort factors in the
// specified weight order.
func DefaultPriorities() []domain.SortPriority {
	return []domain.SortPriority{
		{Field: "temp_status", Direction: DirDesc, Weight: 100, Enabled: true},
		{Field: "width", Direction: DirDesc, Weight: 95, Enabled: true, Group: "width"},
		{Field: "priority", Direction: DirDesc, Weight: 90, Enabled: true},
		{Field: "hardness_level", Direction: DirAsc, Weight: 85, Enabled: true, Group: "hardness_level"},
		{Field: "thickness", Direction: DirAsc, Weight: 80, Enabled: true},
		{Field: "surface_level", Direction: DirDesc, Weight: 75, Enabled: true},
		{Field: "product_type", Direction: DirAsc, Weight: 65, Enabled: true, Group: "product_type"},
		{Field: "storage_days", Direction: DirDesc, Weight: 60, Enabled: true},
		{Field: "steel_grade", Direction: DirAsc, Weight: 55, Enabled: true, Group: "steel_grade"},
	}
}

// SortKey is one priority's extracted comparison value for one coil.
type SortKey struct {
	Priority  domain.SortPriority
	Numeric   float64
	RawString string
}

// SortedCoil pairs a coil with the sort keys computed for it.
type SortedCoil struct {
	Coil              domain.Coil
	SortKeys          []SortKey
	EarliestReadyDate string
}

func temperStatusRank(status string) float64 {
	if status == domain.TempStatusReady {
		return 1
	}
	return 0
}

// extractFieldValue returns (numeric_key, raw_string) for one
// priority/coil pair. sort_map (when present on the priority) takes
// precedence over the built-in defaults.
func extractFieldValue(c domain.Coil, p domain.SortPriority) (float64, string) {
	if p.SortMap != nil {
		var raw string
		switch p.Field {
		case "hardness_level":
			raw = c.HardnessLevel
		case "surface_level":
			raw = c.SurfaceLevel
		case "product_type":
			raw = c.ProductType
		case "steel_grade":
			raw = c.SteelGrade
		default:
			raw = ""
		}
		if v, ok := p.SortMap[raw]; ok {
			return v, raw
		}
	}

	switch p.Field {
	case "temp_status":
		return temperStatusRank(c.TempStatus), c.TempStatus
	case "width":
		return c.Width, formatFloat(c.Width)
	case "priority":
		return c.PriorityFinal, formatFloat(c.PriorityFinal)
	case "hardness_level":
		order := DefaultHardnessOrder()
		v, ok := order[c.HardnessLevel]
		if !ok {
			v = 2
		}
		return v, c.HardnessLevel
	case "thickness":
		return c.Thickness, formatFloat(c.Thickness)
	case "surface_level":
		order := DefaultSurfaceOrder()
		v, ok := order[c.SurfaceLevel]
		if !ok {
			v = 0
		}
		return v, c.SurfaceLevel
	case "product_type":
		return 0, c.ProductType
	case "storage_days":
		return float64(c.WaitDays), formatFloat(float64(c.WaitDays))
	case "steel_grade":
		return 0, c.SteelGrade
	default:
		return 0, ""
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// buildSortKeys computes sort keys for one coil across the given,
// already-filtered-and-ordered priorities.
func buildSortKeys(c domain.Coil, priorities []domain.SortPriority) []SortKey {
	keys := make([]SortKey, len(priorities))
	for i, p := range priorities {
		numeric, raw := extractFieldValue(c, p)
		keys[i] = SortKey{Priority: p, Numeric: numeric, RawString: raw}
	}
	return keys
}

func compareDirectional(a, b float64, dir string) int {
	switch {
	case a == b:
		return 0
	case (a < b) == (dir == DirAsc):
		return -1
	default:
		return 1
	}
}

func compareStringDirectional(a, b string, dir string) int {
	switch {
	case a == b:
		return 0
	case (a < b) == (dir == DirAsc):
		return -1
	default:
		return 1
	}
}

// compareSortKeys performs the lexicographic compare: per priority,
// compare the numeric key by direction; on a tie compare the raw
// string by direction; otherwise move to the next priority.
func compareSortKeys(a, b []SortKey) bool {
	for i := range a {
		if c := compareDirectional(a[i].Numeric, b[i].Numeric, a[i].Priority.Direction); c != 0 {
			return c < 0
		}
		if c := compareStringDirectional(a[i].RawString, b[i].RawString, a[i].Priority.Direction); c != 0 {
			return c < 0
		}
	}
	return false
}

// enabledOrdered drops disabled priorities and orders the rest by
// weight descending (stable on ties).
func enabledOrdered(priorities []domain.SortPriority) []domain.SortPriority {
	out := make([]domain.SortPriority, 0, len(priorities))
	for _, p := range priorities {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// Sort orders coils by the given priority configuration, returning a
// SortedCoil per input coil in final order. Sorting is stable.
func Sort(coils []domain.Coil, priorities []domain.SortPriority) []SortedCoil {
	active := enabledOrdered(priorities)

	sorted := make([]SortedCoil, len(coils))
	for i, c := range coils {
		sorted[i] = SortedCoil{Coil: c, SortKeys: buildSortKeys(c, active)}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return compareSortKeys(sorted[i].SortKeys, sorted[j].SortKeys)
	})

	return sorted
}

// Less reports whether a sorts before b by their precomputed sort
// keys, exposed for the Sequencer's pool re-sort.
func Less(a, b SortedCoil) bool {
	return compareSortKeys(a.SortKeys, b.SortKeys)
}

// Resort returns a copy of an already-built SortedCoil slice re-sorted
// by its existing sort keys. The Sequencer does not call it; it re-sorts
// its pool through Less.
func Resort(coils []SortedCoil) []SortedCoil {
	out := make([]SortedCoil, len(coils))
	copy(out, coils)
	sort.SliceStable(out, func(i, j int) bool {
		return compareSortKeys(out[i].SortKeys, out[j].SortKeys)
	})
	return out
}
