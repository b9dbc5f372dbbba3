// Package directory lists the public face of the service. Only daemons with
// public visibility appear here; unlisted and private ones are reachable (or
// not) by exact address alone.
package directory

import (
	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/pagination"
)

// MaxPageSize caps the listing window regardless of what the client asks
// for.
const MaxPageSize = 50

type Sort string

const (
	SortRecent Sort = "recent"
	SortName   Sort = "name"
)

func (s Sort) Valid() bool {
	switch s {
	case SortRecent, SortName:
		return true
	}
	return false
}

func (s Sort) order() db.DaemonOrder {
	if s == SortName {
		return db.OrderName
	}
	return db.OrderRecent
}

type Directory struct {
	db *db.DB
}

func New(database *db.DB) *Directory {
	return &Directory{db: database}
}

type Filter struct {
	Tag  string
	Sort Sort
	Page pagination.Page
}

// Listing is one window of the directory. Total counts every public daemon
// matching the filter, not just the window, so clients can page without a
// second query. An offset past the end yields an empty window with the
// total intact.
type Listing struct {
	Items []models.DaemonSummary `json:"items"`
	Total int64                  `json:"total"`
}

func (d *Directory) ListPublic(filter Filter) (*Listing, error) {
	page := filter.Page.Clamp(MaxPageSize)
	filters := publicFilters(filter.Tag)

	total, err := db.CountDaemons(d.db, filters...)
	if err != nil {
		return nil, err
	}

	daemons, err := db.GetDaemonsPaginated(d.db, page, filter.Sort.order(), filters...)
	if err != nil {
		return nil, err
	}

	items := make([]models.DaemonSummary, 0, len(daemons))
	for i := range daemons {
		items = append(items, daemons[i].Summary())
	}

	return &Listing{Items: items, Total: total}, nil
}

// PopularTags counts tags across public daemons, most-used first. Counts
// are recomputed per call straight from the daemon rows; there is no
// maintained tag table to drift out of sync.
func (d *Directory) PopularTags(limit int) ([]models.TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return db.PopularTags(d.db, limit, db.FilterEq("visibility", models.VisibilityPublic))
}

func publicFilters(tag string) []db.Filter {
	filters := []db.Filter{
		db.FilterEq("visibility", models.VisibilityPublic),
	}
	if tag != "" {
		filters = append(filters, db.TagFilter(tag))
	}
	return filters
}
