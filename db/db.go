package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by single-record lookups when nothing matches the
// filters, including records that exist but are filtered out by visibility.
var ErrNotFound = errors.New("record not found")

type DB struct {
	*sql.DB
}

type Execer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func Make(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		pragma journal_mode = WAL;
		pragma synchronous = normal;
		pragma temp_store = memory;
		pragma busy_timeout = 5000;

		create table if not exists users (
			id text primary key,
			username text not null unique,
			password_hash text not null,
			created text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);

		create table if not exists api_keys (
			id text primary key,
			user_id text not null,
			name text not null default '',
			key_prefix text not null,
			key_hash text not null unique,
			created text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			foreign key (user_id) references users(id) on delete cascade
		);
		create index if not exists idx_api_keys_prefix on api_keys(key_prefix);

		create table if not exists daemons (
			-- identifiers
			id text primary key,
			owner_id text not null,
			handle text not null,

			-- identity
			display_name text not null,
			tagline text not null default '',
			visibility text not null default 'public'
				check (visibility in ('public', 'unlisted', 'private')),
			identity_meta text not null default '{}',
			tags text not null default '[]',

			-- homepage
			stylesheet text not null default '',

			-- meta
			created text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),

			-- constraints
			unique(owner_id, handle),
			foreign key (owner_id) references users(id) on delete cascade
		);

		create table if not exists pages (
			id integer primary key autoincrement,
			daemon_id text not null,
			position integer not null,

			slug text not null,
			title text not null default '',
			html text not null default '',

			unique(daemon_id, slug),
			unique(daemon_id, position),
			foreign key (daemon_id) references daemons(id) on delete cascade
		);

		create table if not exists migrations (
			id integer primary key autoincrement,
			name text unique
		);
	`)
	if err != nil {
		return nil, err
	}

	runMigration(db, "add-last-used-to-api-keys", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			alter table api_keys add column last_used text;
		`)
		return err
	})

	runMigration(db, "index-daemons-updated", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			create index idx_daemons_updated on daemons(updated);
		`)
		return err
	})

	return &DB{db}, nil
}

type migrationFn = func(*sql.Tx) error

func runMigration(d *sql.DB, name string, migrationFn migrationFn) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow("select exists (select 1 from migrations where name = ?)", name).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	if err := migrationFn(tx); err != nil {
		log.Printf("Failed to run migration %s: %v", name, err)
		return err
	}

	if _, err := tx.Exec("insert into migrations (name) values (?)", name); err != nil {
		log.Printf("Failed to mark migration %s as complete: %v", name, err)
		return err
	}

	return tx.Commit()
}

type Filter struct {
	key string
	arg any
	cmp string
}

func newFilter(key, cmp string, arg any) Filter {
	return Filter{
		key: key,
		arg: arg,
		cmp: cmp,
	}
}

func FilterEq(key string, arg any) Filter    { return newFilter(key, "=", arg) }
func FilterNotEq(key string, arg any) Filter { return newFilter(key, "<>", arg) }
func FilterGte(key string, arg any) Filter   { return newFilter(key, ">=", arg) }
func FilterLte(key string, arg any) Filter   { return newFilter(key, "<=", arg) }
func FilterLike(key string, arg any) Filter  { return newFilter(key, "like", arg) }
func FilterIn(key string, arg any) Filter    { return newFilter(key, "in", arg) }

func (f Filter) Condition() string {
	rv := reflect.ValueOf(f.arg)
	kind := rv.Kind()

	// `FilterIn(k, [1, 2, 3])` compiles down to `k in (?, ?, ?)`
	if (kind == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || kind == reflect.Array {
		if rv.Len() == 0 {
			// always false
			return "1 = 0"
		}

		placeholders := make([]string, rv.Len())
		for i := range placeholders {
			placeholders[i] = "?"
		}

		return fmt.Sprintf("%s %s (%s)", f.key, f.cmp, strings.Join(placeholders, ", "))
	}

	return fmt.Sprintf("%s %s ?", f.key, f.cmp)
}

func (f Filter) Arg() []any {
	rv := reflect.ValueOf(f.arg)
	kind := rv.Kind()
	if (kind == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || kind == reflect.Array {
		if rv.Len() == 0 {
			return nil
		}

		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}

	return []any{f.arg}
}

func whereClause(filters []Filter) (string, []any) {
	var conditions []string
	var args []any
	for _, filter := range filters {
		conditions = append(conditions, filter.Condition())
		args = append(args, filter.Arg()...)
	}

	if conditions == nil {
		return "", nil
	}
	return " where " + strings.Join(conditions, " and "), args
}
