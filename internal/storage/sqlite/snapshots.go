package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arolek/logmine/pkg/models"
)

// SaveTemplateSnapshot stores a gzip-compressed logmine.Snapshot blob under
// name, overwriting any previous snapshot with the same name. name is
// typically the server instance id or "default" for a single-node deployment.
func (s *Store) SaveTemplateSnapshot(ctx context.Context, name string, data []byte, updatedAtUnix int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO template_snapshots (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, name, data, updatedAtUnix)
	if err != nil {
		return fmt.Errorf("saving template snapshot %s: %w", name, err)
	}
	return nil
}

// LoadTemplateSnapshot retrieves a previously saved snapshot blob by name.
func (s *Store) LoadTemplateSnapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM template_snapshots WHERE name = ?
	`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template snapshot %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading template snapshot %s: %w", name, err)
	}
	return data, nil
}

// ListTemplateSnapshots returns the names of all saved snapshots.
func (s *Store) ListTemplateSnapshots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM template_snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing template snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning template snapshot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
