package marks

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// LineBreak separates names inside one tooltip.
const LineBreak = "<br>"

// NameIndex maps a value to the names recorded against it, preserving the order
// names were added in.
type NameIndex map[int][]string

// Add records name against value.
func (idx NameIndex) Add(value int, name string) {
	idx[value] = append(idx[value], name)
}

// Values returns the indexed values in ascending order.
func (idx NameIndex) Values() []int {
	values := make([]int, 0, len(idx))
	for v := range idx {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

// AggregateLabels builds one tooltip per bin.
//
// Bin i covers [edges[i], edges[i+1]); the last bin also includes its top edge.
// Values are visited in ascending order and each value contributes its names in
// insertion order. The result has len(edges)-1 entries; bins without names get
// an empty string.
func AggregateLabels(valueToNames map[int][]string, edges []int) []string {
	if len(edges) < 2 {
		return nil
	}

	values := NameIndex(valueToNames).Values()
	labels := make([]string, len(edges)-1)
	for i := range labels {
		var names []string
		for _, v := range values {
			if BinIndex(edges, v) == i {
				names = append(names, valueToNames[v]...)
			}
		}
		labels[i] = strings.Join(names, LineBreak)
	}
	return labels
}

// PointLabel renders the hover label for a single record.
func PointLabel(moduleCode, name string) string {
	return fmt.Sprintf("<div class='label'>%s: %s</div>", html.EscapeString(moduleCode), html.EscapeString(name))
}
