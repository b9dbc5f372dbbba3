package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KohlJary/geocass/models"
)

func AddUser(e Execer, user *models.User) error {
	_, err := e.Exec(
		`insert into users (id, username, password_hash) values (?, ?, ?)`,
		user.Id, user.Username, user.PasswordHash,
	)
	return err
}

// GetUser returns the single user matching the filters, or ErrNotFound.
func GetUser(e Execer, filters ...Filter) (*models.User, error) {
	where, args := whereClause(filters)

	query := fmt.Sprintf(`select id, username, password_hash, created from users %s`, where)

	var user models.User
	var createdAt string
	err := e.QueryRow(query, args...).Scan(&user.Id, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Created, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		user.Created = time.Now()
	}

	return &user, nil
}

func CountUsers(e Execer) (int64, error) {
	var count int64
	err := e.QueryRow(`select count(1) from users`).Scan(&count)
	if !errors.Is(err, sql.ErrNoRows) && err != nil {
		return 0, err
	}
	return count, nil
}

func AddApiKey(e Execer, key *models.ApiKey) error {
	_, err := e.Exec(
		`insert into api_keys (id, user_id, name, key_prefix, key_hash) values (?, ?, ?, ?, ?)`,
		key.Id, key.UserId, key.Name, key.Prefix, key.Hash,
	)
	return err
}

func GetApiKeys(e Execer, filters ...Filter) ([]models.ApiKey, error) {
	where, args := whereClause(filters)

	query := fmt.Sprintf(
		`select id, user_id, name, key_prefix, key_hash, created, last_used from api_keys %s order by created desc`,
		where,
	)

	rows, err := e.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []models.ApiKey
	for rows.Next() {
		var key models.ApiKey
		var createdAt string
		var lastUsed sql.NullString

		if err := rows.Scan(&key.Id, &key.UserId, &key.Name, &key.Prefix, &key.Hash, &createdAt, &lastUsed); err != nil {
			return nil, err
		}

		key.Created, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			key.Created = time.Now()
		}
		if lastUsed.Valid {
			t, err := time.Parse(time.RFC3339, lastUsed.String)
			if err == nil {
				key.LastUsed = &t
			}
		}

		all = append(all, key)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return all, nil
}

// TouchApiKey records that the key was just used. Failures are the caller's
// to ignore; a stale last_used never blocks auth.
func TouchApiKey(e Execer, id string) error {
	_, err := e.Exec(
		`update api_keys set last_used = ? where id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	return err
}

func DeleteApiKey(e Execer, filters ...Filter) (bool, error) {
	where, args := whereClause(filters)

	res, err := e.Exec(fmt.Sprintf(`delete from api_keys %s`, where), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
