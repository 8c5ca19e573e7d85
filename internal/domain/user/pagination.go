package user

import "math"

const (
	// DefaultPageSize is used when the caller does not ask for a page size.
	DefaultPageSize = 20
	// MaxPageSize is the largest page a caller can request.
	MaxPageSize = 100
)

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64 // Total number of records in the whole collection
	Page       int64 // Current page number (1-based)
	PageSize   int64 // Number of records per page
	TotalPages int64 // Total number of pages
}

// NewPagination creates a new Pagination instance with calculated total pages.
func NewPagination(total, page, pageSize int64) *Pagination {
	var totalPages int64
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return &Pagination{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// ClampPageSize bounds size to [1, MaxPageSize].
func ClampPageSize(size int64) int64 {
	switch {
	case size < 1:
		return 1
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

// Offset returns the number of records that precede page. It saturates at
// math.MaxInt64, so a page too large to address lies past every record.
func Offset(page, pageSize int64) int64 {
	if page < 1 || pageSize < 1 {
		return 0
	}
	if page-1 > math.MaxInt64/pageSize {
		return math.MaxInt64
	}
	return (page - 1) * pageSize
}
