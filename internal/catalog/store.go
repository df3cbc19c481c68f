package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup for an image the store does not have.
var ErrNotFound = errors.New("image not found")

// Store caches the remote catalog and the user's own images in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies
// migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// ReplaceImages swaps the cached catalog for doc's contents in one
// transaction. User images and mirrors are untouched.
func (s *Store) ReplaceImages(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	for _, image := range doc.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO images (
                id, name, version, category, download_url, sha256,
                size_bytes, size_human, description, verified,
                date_added, popularity, search_text
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			image.ID,
			image.Name,
			image.Version,
			string(image.Category),
			image.DownloadURL,
			image.SHA256,
			image.SizeBytes,
			image.SizeHuman,
			image.Description,
			boolToInt(image.Verified),
			image.DateAdded,
			image.Popularity,
			image.SearchText(),
		); err != nil {
			return fmt.Errorf("insert image %s: %w", image.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO catalog_meta (key, value) VALUES ('last_refreshed', ?)",
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record refresh time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

// LastRefreshed returns when the catalog cache was last replaced, or the
// zero time for a never-refreshed store.
func (s *Store) LastRefreshed(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM catalog_meta WHERE key = 'last_refreshed'",
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read refresh time: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse refresh time: %w", err)
	}
	return parsed, nil
}

// ListImages returns cached catalog entries, optionally filtered by
// category, most popular first.
func (s *Store) ListImages(ctx context.Context, category Category) ([]Image, error) {
	query := `SELECT id, name, version, category, download_url, sha256,
        size_bytes, size_human, description, verified, date_added, popularity
        FROM images`
	args := []any{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY popularity DESC, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

// SearchImages matches the query against each entry's search text.
func (s *Store) SearchImages(ctx context.Context, query string) ([]Image, error) {
	needle := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, version, category, download_url, sha256,
            size_bytes, size_human, description, verified, date_added, popularity
        FROM images WHERE search_text LIKE ?
        ORDER BY popularity DESC, name`,
		needle,
	)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

// ImageByID looks up one catalog entry.
func (s *Store) ImageByID(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, category, download_url, sha256,
            size_bytes, size_human, description, verified, date_added, popularity
        FROM images WHERE id = ?`,
		id,
	)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	return image, nil
}

// CountImages returns the number of cached catalog entries.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// AddMirror registers an alternative download location for an image.
func (s *Store) AddMirror(ctx context.Context, mirror Mirror) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO mirrors (image_id, url, region, priority, status) VALUES (?, ?, ?, ?, ?)",
		mirror.ImageID, mirror.URL, mirror.Region, mirror.Priority, mirror.Status,
	)
	if err != nil {
		return fmt.Errorf("insert mirror: %w", err)
	}
	return nil
}

// MirrorsFor returns an image's mirrors in priority order.
func (s *Store) MirrorsFor(ctx context.Context, imageID string) ([]Mirror, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, image_id, url, region, priority, status
        FROM mirrors WHERE image_id = ? ORDER BY priority ASC, id ASC`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mirrors: %w", err)
	}
	defer rows.Close()

	var mirrors []Mirror
	for rows.Next() {
		var m Mirror
		if err := rows.Scan(&m.ID, &m.ImageID, &m.URL, &m.Region, &m.Priority, &m.Status); err != nil {
			return nil, fmt.Errorf("scan mirror: %w", err)
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, rows.Err()
}

// SetMirrorStatus records a health-check outcome for a mirror.
func (s *Store) SetMirrorStatus(ctx context.Context, mirrorID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE mirrors SET status = ?, last_checked = datetime('now') WHERE id = ?",
		status, mirrorID,
	)
	if err != nil {
		return fmt.Errorf("update mirror status: %w", err)
	}
	return nil
}

// AddUserImage registers a local file the user supplied themselves.
func (s *Store) AddUserImage(ctx context.Context, image UserImage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO user_images (id, name, local_path, size_bytes, added_at) VALUES (?, ?, ?, ?, ?)",
		image.ID, image.Name, image.LocalPath, image.SizeBytes, image.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user image: %w", err)
	}
	return nil
}

// ListUserImages returns the user's registered local images, newest first.
func (s *Store) ListUserImages(ctx context.Context) ([]UserImage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, local_path, size_bytes, added_at FROM user_images ORDER BY added_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list user images: %w", err)
	}
	defer rows.Close()

	var images []UserImage
	for rows.Next() {
		var img UserImage
		if err := rows.Scan(&img.ID, &img.Name, &img.LocalPath, &img.SizeBytes, &img.AddedAt); err != nil {
			return nil, fmt.Errorf("scan user image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// RemoveUserImage forgets a registered local image. The file itself stays.
func (s *Store) RemoveUserImage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*Image, error) {
	var (
		image    Image
		category string
		verified int
	)
	err := row.Scan(
		&image.ID, &image.Name, &image.Version, &category,
		&image.DownloadURL, &image.SHA256, &image.SizeBytes,
		&image.SizeHuman, &image.Description, &verified,
		&image.DateAdded, &image.Popularity,
	)
	if err != nil {
		return nil, err
	}
	image.Category = Category(category)
	image.Verified = verified != 0
	return &image, nil
}

func scanImages(rows *sql.Rows) ([]Image, error) {
	var images []Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, *image)
	}
	return images, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
