// README: Pure ordering helpers shared by the dispatch policies.
package dispatch

import "sort"

// sortByDistance sorts items ascending by the accessor's distance. Equal
// distances keep their original relative order.
func sortByDistance[T any](items []T, dist func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return dist(items[i]) < dist(items[j])
	})
}
