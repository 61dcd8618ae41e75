package domain

// Page is the list envelope returned by every paginated endpoint. Page
// numbers are 1 based and derived from the skip/limit the caller supplied.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Size  int64 `json:"size"`
	Pages int64 `json:"pages"`
}

func NewPage[T any](items []T, total int64, skip uint64, limit uint64) Page[T] {
	if items == nil {
		items = []T{}
	}

	// Mirrors the repository default applied when no limit was given.
	if limit == 0 {
		limit = 100
	}

	size := int64(limit)

	return Page[T]{
		Items: items,
		Total: total,
		Page:  int64(skip)/size + 1,
		Size:  size,
		Pages: (total + size - 1) / size,
	}
}
