package shared

// Pagination contains metadata for zero-based paginated listings.
type Pagination struct {
	Number     int
	Size       int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(number, size, total int) Pagination {
	if size <= 0 {
		size = 5
	}
	if number < 0 {
		number = 0
	}
	totalPages := (total + size - 1) / size
	return Pagination{Number: number, Size: size, Total: total, TotalPages: totalPages}
}

// First reports whether this is the first page.
func (p Pagination) First() bool {
	return p.Number == 0
}

// Last reports whether no page follows this one.
func (p Pagination) Last() bool {
	return p.Number >= p.TotalPages-1
}
