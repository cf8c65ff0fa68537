// Package paginate slices in-memory, already ordered sequences into pages.
package paginate

// TotalPages returns ceil(n/size). It is 0 for an empty sequence and for a
// non-positive page size.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Page returns the 1-based page of items. Out-of-range pages yield an empty
// slice. The result shares backing storage with items.
func Page[T any](items []T, page, size int) []T {
	if size <= 0 || page < 1 {
		return items[:0:0]
	}
	start := (page - 1) * size
	if start >= len(items) {
		return items[:0:0]
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end:end]
}

// Clamp keeps page inside [1, TotalPages(n, size)], returning 1 when there are no pages.
func Clamp(page, n, size int) int {
	total := TotalPages(n, size)
	if page < 1 || total == 0 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}
