// internal/utils/pagination.go
package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

type PaginationParams struct {
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	Search  string `json:"search"`
	Enabled bool   `json:"-"`
}

type PaginationResult struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"total_pages"`
	Data       interface{} `json:"data"`
}

// GetPaginationParams reads page/limit/search. Pagination is only enabled
// when the client asks for a page or a limit; otherwise the full list is
// returned, the way the dashboard renders it.
func GetPaginationParams(c *gin.Context) PaginationParams {
	_, hasPage := c.GetQuery("page")
	_, hasLimit := c.GetQuery("limit")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	search := c.Query("search")

	// Validate and set defaults
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return PaginationParams{
		Page:    page,
		Limit:   limit,
		Search:  search,
		Enabled: hasPage || hasLimit,
	}
}

// PageBounds returns the [start, end) window of a slice of length total.
// Pages past the end yield an empty window.
func PageBounds(total int, params PaginationParams) (int, int) {
	if params.Limit < 1 || params.Page < 1 {
		return 0, 0
	}

	// compare before multiplying so huge page numbers cannot overflow
	start := total
	if params.Page-1 <= total/params.Limit {
		start = min((params.Page-1)*params.Limit, total)
	}
	end := start + min(params.Limit, total-start)
	return start, end
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))

	return PaginationResult{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		Data:       data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
}
