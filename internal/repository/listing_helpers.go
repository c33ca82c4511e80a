package repository

import (
	"fmt"
	"strings"

	"github.com/studybridge/studybridge-api/internal/models"
)

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}

// listingOrder builds an ORDER BY fragment restricted to whitelisted columns.
func listingOrder(filter models.ListingFilter, allowed map[string]bool) string {
	sortBy := filter.SortBy
	if !allowed[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("%s %s", sortBy, order)
}
