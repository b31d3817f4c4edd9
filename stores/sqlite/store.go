package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sketchvault/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based metadata store.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %v", err)
	}

	tableStmt := `
	CREATE TABLE IF NOT EXISTS drawings (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		data_url TEXT,
		thumbnail_url TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		return nil, fmt.Errorf("failed to create drawings table: %v", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Drawing, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, data_url, thumbnail_url, created_at, updated_at FROM drawings WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drawings []*core.Drawing
	for rows.Next() {
		var drawing core.Drawing
		drawing.UserID = userID
		if err := rows.Scan(&drawing.ID, &drawing.Name, &drawing.DataURL, &drawing.ThumbnailURL, &drawing.CreatedAt, &drawing.UpdatedAt); err != nil {
			return nil, err
		}
		drawings = append(drawings, &drawing)
	}
	return drawings, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Drawing, error) {
	var drawing core.Drawing
	drawing.UserID = userID
	drawing.ID = id
	err := s.db.QueryRowContext(ctx, "SELECT name, data_url, thumbnail_url, created_at, updated_at FROM drawings WHERE user_id = ? AND id = ?", userID, id).
		Scan(&drawing.Name, &drawing.DataURL, &drawing.ThumbnailURL, &drawing.CreatedAt, &drawing.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("drawing %s not found", id)
		}
		return nil, err
	}
	return &drawing, nil
}

func (s *sqliteStore) Owner(ctx context.Context, id string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM drawings WHERE id = ? LIMIT 1", id).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return userID, nil
}

func (s *sqliteStore) Save(ctx context.Context, drawing *core.Drawing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM drawings WHERE user_id = ? AND id = ?", drawing.UserID, drawing.ID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	now := time.Now()
	drawing.UpdatedAt = now
	if exists {
		_, err = tx.ExecContext(ctx, "UPDATE drawings SET name = ?, data_url = ?, thumbnail_url = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			drawing.Name, drawing.DataURL, drawing.ThumbnailURL, now, drawing.UserID, drawing.ID)
	} else {
		drawing.CreatedAt = now
		_, err = tx.ExecContext(ctx, "INSERT INTO drawings (id, user_id, name, data_url, thumbnail_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			drawing.ID, drawing.UserID, drawing.Name, drawing.DataURL, drawing.ThumbnailURL, now, now)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    drawing.UserID,
		"drawing_id": drawing.ID,
	}).Debug("Drawing metadata saved")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM drawings WHERE user_id = ? AND id = ?", userID, id)
	return err
}
