package db

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/KohlJary/geocass/models"
)

// TagFilter matches daemons carrying the tag. Tags are stored as a JSON
// array of slugs, so matching the quoted form is exact: no stored tag can
// contain a quote or be a substring of another quoted tag.
func TagFilter(tag string) Filter {
	return FilterLike("tags", `%"`+tag+`"%`)
}

// PopularTags recomputes tag counts from the daemons matching the filters,
// most-used first, ties broken by tag name. A daemon carrying a tag twice
// still counts once. limit <= 0 returns all tags.
func PopularTags(e Execer, limit int, filters ...Filter) ([]models.TagCount, error) {
	where, args := whereClause(filters)

	rows, err := e.Query(fmt.Sprintf(`select tags from daemons %s`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("bad tags column: %w", err)
		}

		seen := make(map[string]struct{})
		for _, tag := range tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			counts[tag]++
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	all := make([]models.TagCount, 0, len(counts))
	for tag, count := range counts {
		all = append(all, models.TagCount{Tag: tag, Count: count})
	}

	slices.SortFunc(all, func(a, b models.TagCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Tag, b.Tag)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}
