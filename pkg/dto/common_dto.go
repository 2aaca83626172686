package dto

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// PaginationQuery is the limit/offset pair accepted by every list endpoint.
type PaginationQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Normalize applies defaults and bounds.
func (q PaginationQuery) Normalize() PaginationQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

type PaginatedResponse[T any] struct {
	Count   int64 `json:"count"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Results []T   `json:"results"`
}

// NewPage builds a response page; a nil slice is rendered as [].
func NewPage[T any](results []T, count int64, q PaginationQuery) *PaginatedResponse[T] {
	if results == nil {
		results = []T{}
	}
	return &PaginatedResponse[T]{
		Count:   count,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Results: results,
	}
}

// SearchFilter is used by the category, genre and user lists.
type SearchFilter struct {
	Search string `form:"search"`
	PaginationQuery
}
