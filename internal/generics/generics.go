package generics

import "github.com/lealre/natours-backend/internal/query"

/*
Page represents a paginated result set with metadata.

Fields:
- Page: Current page number (1-indexed)
- Size: Number of records returned for the current page
- TotalPages: Total number of pages based on TotalResults and the page limit
- TotalResults: Total number of records matching the filter
- Content: Slice containing the actual data records for the current page
*/
type Page[T any] struct {
	Page         int   `json:"page"`
	Size         int   `json:"size"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
	Content      []T   `json:"content"`
}

func NewPage[T any](spec query.Spec, content []T) Page[T] {
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Page:         spec.Page,
		Size:         len(content),
		TotalPages:   spec.TotalPages,
		TotalResults: spec.TotalCount,
		Content:      content,
	}
}

// Map applies fn to every element of in.
func Map[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
