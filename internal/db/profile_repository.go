package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/coopsim/internal/model"
)

// ProfileRepository хранит профили игроков в PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository создаёт repository поверх pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Load возвращает профиль по имени пользователя.
// Возвращает nil, nil если профиль не найден.
func (r *ProfileRepository) Load(ctx context.Context, username string) (*model.Profile, error) {
	username = strings.ToLower(username)
	p := model.Profile{Username: username}
	err := r.pool.QueryRow(ctx,
		`SELECT instance, pos_x, pos_y, health, max_health, items, equipment, updated_at
		 FROM profiles WHERE username = $1`, username,
	).Scan(&p.Instance, &p.Position.X, &p.Position.Y, &p.Health, &p.MaxHealth, &p.Items, &p.Equipment, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", username, err)
	}
	if p.Items == nil {
		p.Items = map[string]int{}
	}
	if p.Equipment == nil {
		p.Equipment = map[string]string{}
	}
	return &p, nil
}

// Save вставляет или обновляет профиль. Более старая запись не затирает новую.
func (r *ProfileRepository) Save(ctx context.Context, p model.Profile) error {
	items := p.Items
	if items == nil {
		items = map[string]int{}
	}
	equipment := p.Equipment
	if equipment == nil {
		equipment = map[string]string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (username, instance, pos_x, pos_y, health, max_health, items, equipment, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (username) DO UPDATE SET
		   instance = EXCLUDED.instance,
		   pos_x = EXCLUDED.pos_x,
		   pos_y = EXCLUDED.pos_y,
		   health = EXCLUDED.health,
		   max_health = EXCLUDED.max_health,
		   items = EXCLUDED.items,
		   equipment = EXCLUDED.equipment,
		   updated_at = EXCLUDED.updated_at
		 WHERE profiles.updated_at <= EXCLUDED.updated_at`,
		strings.ToLower(p.Username), p.Instance, p.Position.X, p.Position.Y,
		p.Health, p.MaxHealth, items, equipment, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving profile %q: %w", p.Username, err)
	}
	return nil
}

// Delete удаляет профиль. Отсутствующий профиль не ошибка.
func (r *ProfileRepository) Delete(ctx context.Context, username string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE username = $1`, strings.ToLower(username)); err != nil {
		return fmt.Errorf("deleting profile %q: %w", username, err)
	}
	return nil
}

// CountByInstance returns how many stored profiles were last seen in each instance.
func (r *ProfileRepository) CountByInstance(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT instance, count(*) FROM profiles GROUP BY instance`)
	if err != nil {
		return nil, fmt.Errorf("counting profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning profile count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile counts: %w", err)
	}
	return counts, nil
}
