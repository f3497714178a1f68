package blog

import (
	"errors"
	"strconv"
)

const DefaultPageSize = 10

// PaginationData holds all the necessary info for rendering pagination controls.
type PaginationData struct {
	CurrentPage int
	TotalPages  int
	TotalItems  int
	PageSize    int
	NextPage    int
	PrevPage    int
	HasNext     bool
	HasPrev     bool
}

// Paginate resolves the raw ?page= value against total items. A value that
// is not a number selects the first page; a number outside 1..TotalPages,
// however large, selects the last page. There is always at least one page.
func Paginate(raw string, total, pageSize int) PaginationData {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page, err := strconv.Atoi(raw)
	switch {
	case errors.Is(err, strconv.ErrRange):
		page = totalPages
	case err != nil:
		page = 1
	case page < 1 || page > totalPages:
		page = totalPages
	}
	return PaginationData{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		PageSize:    pageSize,
		NextPage:    page + 1,
		PrevPage:    page - 1,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

func (p PaginationData) Offset() int {
	return (p.CurrentPage - 1) * p.PageSize
}

func (p PaginationData) Limit() int {
	return p.PageSize
}
