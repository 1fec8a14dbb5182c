package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds pagination and ordering parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
	SortBy string
	Desc   bool
}

// ParsePagination reads page, limit, sortBy and sortOrder query params with
// sane defaults. Only whitelisted columns are accepted for sortBy; anything
// else falls back to the provided default column.
func ParsePagination(c *fiber.Ctx, sortable map[string]string, defaultSort string) Pagination {
	page := parseInt(c.Query("page", "1"), 1)
	limit := parseInt(c.Query("limit", "20"), 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}

	sortBy := defaultSort
	if column, ok := sortable[c.Query("sortBy")]; ok {
		sortBy = column
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		SortBy: sortBy,
		Desc:   !strings.EqualFold(c.Query("sortOrder", "desc"), "asc"),
	}
}

// OrderClause renders the pagination's ordering as a SQL order-by clause.
func (p Pagination) OrderClause() string {
	if p.Desc {
		return p.SortBy + " desc"
	}
	return p.SortBy + " asc"
}

// TotalPages computes the page count for a result set.
func (p Pagination) TotalPages(total int64) int64 {
	if p.Limit <= 0 {
		return 0
	}
	pages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		pages++
	}
	return pages
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
