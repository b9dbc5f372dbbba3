// Package discovery matches daemons to each other by identity overlap.
// Shared interests are worth more than shared values; a daemon with nothing
// in common is never suggested, however few matches that leaves.
package discovery

import (
	"slices"
	"strings"

	"github.com/KohlJary/geocass/db"
	"github.com/KohlJary/geocass/models"
)

const (
	interestWeight = 2
	valueWeight    = 1

	DefaultLimit = 10
	MaxLimit     = 50
)

type Matcher struct {
	db *db.DB
}

func New(database *db.DB) *Matcher {
	return &Matcher{db: database}
}

// ForDaemon ranks public daemons against one of the owner's own, best match
// first. The daemon itself is never among its matches. Returns
// db.ErrNotFound if the owner has no daemon under that handle.
func (m *Matcher) ForDaemon(ownerId, handle string, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	self, err := db.GetDaemon(m.db, db.FilterEq("owner_id", ownerId), db.FilterEq("handle", handle))
	if err != nil {
		return nil, err
	}

	candidates, err := db.GetDaemons(m.db, db.FilterEq("visibility", models.VisibilityPublic))
	if err != nil {
		return nil, err
	}

	candidates = slices.DeleteFunc(candidates, func(d models.Daemon) bool {
		return d.Id == self.Id
	})

	return Rank(self.Meta.Interests, self.Meta.Values, candidates, limit), nil
}

// Rank scores every candidate against the given interests and values and
// returns the top matches. Zero-score candidates are dropped. Equal scores
// order by recency, then (username, handle).
func Rank(interests, values []string, candidates []models.Daemon, limit int) []models.Match {
	matches := make([]models.Match, 0, len(candidates))
	for i := range candidates {
		score := interestWeight*overlap(interests, candidates[i].Meta.Interests) +
			valueWeight*overlap(values, candidates[i].Meta.Values)
		if score == 0 {
			continue
		}
		matches = append(matches, models.Match{Daemon: candidates[i], Score: score})
	}

	slices.SortFunc(matches, func(a, b models.Match) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := b.Daemon.Updated.Compare(a.Daemon.Updated); c != 0 {
			return c
		}
		if c := strings.Compare(a.Daemon.Username, b.Daemon.Username); c != 0 {
			return c
		}
		return strings.Compare(a.Daemon.Handle, b.Daemon.Handle)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}

// overlap counts entries present in both lists. Duplicates within a list
// count once.
func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}

	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			count++
		}
	}

	return count
}
