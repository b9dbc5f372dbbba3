package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KohlJary/geocass/models"
	"github.com/KohlJary/geocass/pagination"
)

type DaemonOrder int

const (
	// OrderRecent sorts most-recently-synced first. Ties fall back to
	// (username, handle) so pages are stable across requests.
	OrderRecent DaemonOrder = iota
	// OrderName sorts by (username, handle) ascending.
	OrderName
)

func (o DaemonOrder) clause() string {
	switch o {
	case OrderName:
		return "order by username asc, handle asc"
	default:
		return "order by updated desc, username asc, handle asc"
	}
}

// SyncDaemon upserts the daemon row keyed by (owner_id, handle) and replaces
// its page set wholesale, in one transaction. A failed sync leaves the
// previous daemon and pages untouched. The handle never renames: syncing an
// existing handle updates that record in place.
func SyncDaemon(d *DB, daemon *models.Daemon) (*models.Daemon, error) {
	meta, err := json.Marshal(daemon.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity_meta: %w", err)
	}
	tags := daemon.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJson, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := d.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`insert into daemons (
			id,
			owner_id,
			handle,
			display_name,
			tagline,
			visibility,
			identity_meta,
			tags,
			stylesheet,
			updated
		)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(owner_id, handle) do update set
			display_name = excluded.display_name,
			tagline = excluded.tagline,
			visibility = excluded.visibility,
			identity_meta = excluded.identity_meta,
			tags = excluded.tags,
			stylesheet = excluded.stylesheet,
			updated = excluded.updated`,
		uuid.NewString(),
		daemon.OwnerId,
		daemon.Handle,
		daemon.DisplayName,
		daemon.Tagline,
		daemon.Visibility,
		string(meta),
		string(tagsJson),
		daemon.Stylesheet,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}

	// the conflict clause keeps the original id on re-sync, so read it back
	var id string
	err = tx.QueryRow(
		`select id from daemons where owner_id = ? and handle = ?`,
		daemon.OwnerId, daemon.Handle,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`delete from pages where daemon_id = ?`, id); err != nil {
		return nil, err
	}
	for i, p := range daemon.Pages {
		_, err := tx.Exec(
			`insert into pages (daemon_id, position, slug, title, html) values (?, ?, ?, ?, ?)`,
			id, i, p.Slug, p.Title, p.Html,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return GetDaemon(d, FilterEq("owner_id", daemon.OwnerId), FilterEq("handle", daemon.Handle))
}

// GetDaemon returns the single daemon matching the filters with its pages
// loaded, or ErrNotFound.
func GetDaemon(e Execer, filters ...Filter) (*models.Daemon, error) {
	daemons, err := GetDaemons(e, filters...)
	if err != nil {
		return nil, err
	}
	if len(daemons) == 0 {
		return nil, ErrNotFound
	}
	if len(daemons) != 1 {
		return nil, fmt.Errorf("filters matched %d daemons", len(daemons))
	}

	daemon := daemons[0]
	daemon.Pages, err = GetPages(e, daemon.Id)
	if err != nil {
		return nil, err
	}
	return &daemon, nil
}

// GetDaemons returns daemons matching the filters without their pages.
func GetDaemons(e Execer, filters ...Filter) ([]models.Daemon, error) {
	return getDaemons(e, pagination.Page{}, OrderRecent, filters...)
}

// GetDaemonsPaginated is GetDaemons with an explicit order and window.
func GetDaemonsPaginated(e Execer, page pagination.Page, order DaemonOrder, filters ...Filter) ([]models.Daemon, error) {
	return getDaemons(e, page, order, filters...)
}

func getDaemons(e Execer, page pagination.Page, order DaemonOrder, filters ...Filter) ([]models.Daemon, error) {
	where, args := whereClause(filters)

	limitClause := ""
	if page.Limit != 0 {
		limitClause = fmt.Sprintf(" limit %d offset %d ", page.Limit, page.Offset)
	}

	query := fmt.Sprintf(`select
			daemons.id,
			daemons.owner_id,
			users.username,
			daemons.handle,
			daemons.display_name,
			daemons.tagline,
			daemons.visibility,
			daemons.identity_meta,
			daemons.tags,
			daemons.stylesheet,
			daemons.created,
			daemons.updated
		from daemons
		join users on users.id = daemons.owner_id
		%s
		%s
		%s`,
		where,
		order.clause(),
		limitClause,
	)

	rows, err := e.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []models.Daemon
	for rows.Next() {
		var d models.Daemon
		var meta, tags string
		var createdAt, updatedAt string

		if err := rows.Scan(
			&d.Id,
			&d.OwnerId,
			&d.Username,
			&d.Handle,
			&d.DisplayName,
			&d.Tagline,
			&d.Visibility,
			&meta,
			&tags,
			&d.Stylesheet,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(meta), &d.Meta); err != nil {
			return nil, fmt.Errorf("bad identity_meta on %s/%s: %w", d.Username, d.Handle, err)
		}
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("bad tags on %s/%s: %w", d.Username, d.Handle, err)
		}

		d.Created, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			d.Created = time.Now()
		}
		d.Updated, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			d.Updated = time.Now()
		}

		all = append(all, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return all, nil
}

func CountDaemons(e Execer, filters ...Filter) (int64, error) {
	where, args := whereClause(filters)

	query := fmt.Sprintf(`select count(1) from daemons join users on users.id = daemons.owner_id %s`, where)
	var count int64
	err := e.QueryRow(query, args...).Scan(&count)

	if !errors.Is(err, sql.ErrNoRows) && err != nil {
		return 0, err
	}

	return count, nil
}

// GetPages returns a daemon's pages in display order.
func GetPages(e Execer, daemonId string) ([]models.Page, error) {
	rows, err := e.Query(
		`select slug, title, html from pages where daemon_id = ? order by position asc`,
		daemonId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []models.Page
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.Slug, &p.Title, &p.Html); err != nil {
			return nil, err
		}
		all = append(all, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return all, nil
}

// DeleteDaemon removes the daemon and, through the foreign key cascade, its
// pages. Reports whether a record existed; deleting an absent daemon is not
// an error.
func DeleteDaemon(e Execer, ownerId, handle string) (bool, error) {
	res, err := e.Exec(`delete from daemons where owner_id = ? and handle = ?`, ownerId, handle)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
