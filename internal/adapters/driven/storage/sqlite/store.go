package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Store is a SQLite-backed metadata store for spaces, items and
// query history.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the given data directory.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Space Store ====================

// SaveSpace stores a new space.
func (s *Store) SaveSpace(ctx context.Context, space *domain.Space) error {
	now := time.Now().UTC()
	if space.CreatedAt.IsZero() {
		space.CreatedAt = now
	}
	if space.UpdatedAt.IsZero() {
		space.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, space.ID, space.UserID, space.Name, space.Description, space.CreatedAt, space.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: space %s", domain.ErrDuplicate, space.ID)
		}
		return fmt.Errorf("saving space: %w", err)
	}
	return nil
}

// GetSpace retrieves a space by ID with its derived item count.
func (s *Store) GetSpace(ctx context.Context, id string) (*domain.Space, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at,
		       (SELECT COUNT(*) FROM items WHERE items.space_id = spaces.id)
		FROM spaces WHERE id = ?
	`, id)

	space, err := scanSpace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning space: %w", err)
	}
	return space, nil
}

// ListSpaces returns all spaces owned by a user, newest first.
func (s *Store) ListSpaces(ctx context.Context, userID string) ([]domain.Space, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at,
		       (SELECT COUNT(*) FROM items WHERE items.space_id = spaces.id)
		FROM spaces WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing spaces: %w", err)
	}
	defer rows.Close()

	var spaces []domain.Space
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning space: %w", err)
		}
		spaces = append(spaces, *space)
	}
	return spaces, rows.Err()
}

// UpdateSpace persists name/description changes.
func (s *Store) UpdateSpace(ctx context.Context, space *domain.Space) error {
	space.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE spaces SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, space.Name, space.Description, space.UpdatedAt, space.ID)
	if err != nil {
		return fmt.Errorf("updating space: %w", err)
	}
	return requireRow(res)
}

// DeleteSpace removes a space. Item and query rows cascade.
func (s *Store) DeleteSpace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting space: %w", err)
	}
	return requireRow(res)
}

// ==================== Item Store ====================

// SaveItem inserts an item.
func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = domain.StatusPending
	}

	var originalName, mimeFamily, storagePath, extractedText sql.NullString
	var sizeBytes sql.NullInt64
	ocr := false
	if item.File != nil {
		originalName = sql.NullString{String: item.File.OriginalName, Valid: true}
		mimeFamily = sql.NullString{String: string(item.File.Family), Valid: true}
		storagePath = sql.NullString{String: item.File.StoragePath, Valid: true}
		if item.File.ExtractedText != "" {
			extractedText = sql.NullString{String: item.File.ExtractedText, Valid: true}
		}
		sizeBytes = sql.NullInt64{Int64: item.File.SizeBytes, Valid: true}
		ocr = item.File.OCR
	}

	overflowJSON, err := marshalOverflow(item.Overflow)
	if err != nil {
		return err
	}

	var vectorRef sql.NullInt64
	if item.VectorRef != nil {
		vectorRef = sql.NullInt64{Int64: int64(*item.VectorRef), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, space_id, kind, content, notes, status, failure_reason,
			vector_ref, original_name, size_bytes, mime_family, ocr, storage_path,
			extracted_text, overflow, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.SpaceID, string(item.Kind), item.Content, item.Notes,
		string(item.Status), nullString(item.FailureReason), vectorRef,
		originalName, sizeBytes, mimeFamily, ocr, storagePath, extractedText,
		overflowJSON, item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: item %s", domain.ErrDuplicate, item.ID)
		}
		return fmt.Errorf("saving item: %w", err)
	}
	return nil
}

const itemColumns = `id, space_id, kind, content, notes, status, failure_reason,
	vector_ref, original_name, size_bytes, mime_family, ocr, storage_path,
	extracted_text, overflow, created_at`

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return item, nil
}

// ListItems returns items in a space, newest first.
func (s *Store) ListItems(ctx context.Context, spaceID string, limit, offset int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE space_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, spaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListUserItems returns all items across a user's spaces.
func (s *Store) ListUserItems(ctx context.Context, userID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("items", itemColumns)+`
		FROM items JOIN spaces ON items.space_id = spaces.id
		WHERE spaces.user_id = ?
		ORDER BY items.created_at DESC, items.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// CountReadyItems returns the number of ready items in a space.
func (s *Store) CountReadyItems(ctx context.Context, spaceID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE space_id = ? AND status = ?`,
		spaceID, string(domain.StatusReady))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting ready items: %w", err)
	}
	return count, nil
}

// MarkReady flips an item to ready.
func (s *Store) MarkReady(ctx context.Context, id string, vectorRef uint64, extractedText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = ?, vector_ref = ?, extracted_text = ?, failure_reason = NULL
		WHERE id = ?
	`, string(domain.StatusReady), int64(vectorRef), nullString(extractedText), id)
	if err != nil {
		return fmt.Errorf("marking item ready: %w", err)
	}
	return requireRow(res)
}

// MarkFailed flips an item to failed with a reason.
func (s *Store) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET status = ?, failure_reason = ?, vector_ref = NULL, extracted_text = NULL
		WHERE id = ?
	`, string(domain.StatusFailed), reason, id)
	if err != nil {
		return fmt.Errorf("marking item failed: %w", err)
	}
	return requireRow(res)
}

// UpdateVectorRef rewrites an item's vector ref.
func (s *Store) UpdateVectorRef(ctx context.Context, id string, vectorRef uint64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET vector_ref = ? WHERE id = ?`,
		int64(vectorRef), id)
	if err != nil {
		return fmt.Errorf("updating vector ref: %w", err)
	}
	return requireRow(res)
}

// DeleteItem removes an item row.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return requireRow(res)
}

// ==================== Query Store ====================

// SaveQuery appends a query record.
func (s *Store) SaveQuery(ctx context.Context, query *domain.Query) error {
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now().UTC()
	}
	sources := query.Sources
	if sources == nil {
		sources = []domain.QuerySource{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queries (id, space_id, question, answer, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, query.ID, query.SpaceID, query.Question, query.Answer, string(sourcesJSON), query.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: query %s", domain.ErrDuplicate, query.ID)
		}
		return fmt.Errorf("saving query: %w", err)
	}
	return nil
}

// ListQueries returns queries for a space, newest first.
func (s *Store) ListQueries(ctx context.Context, spaceID string, limit, offset int) ([]domain.Query, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, space_id, question, answer, sources, created_at
		FROM queries WHERE space_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, spaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var queries []domain.Query
	for rows.Next() {
		var q domain.Query
		var sourcesJSON string
		var createdAt sql.NullTime
		if err := rows.Scan(&q.ID, &q.SpaceID, &q.Question, &q.Answer, &sourcesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &q.Sources); err != nil {
			return nil, fmt.Errorf("unmarshaling sources: %w", err)
		}
		if createdAt.Valid {
			q.CreatedAt = createdAt.Time
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// ==================== Helpers ====================

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSpace(row scanner) (*domain.Space, error) {
	var space domain.Space
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&space.ID, &space.UserID, &space.Name, &space.Description,
		&createdAt, &updatedAt, &space.ItemCount); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		space.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		space.UpdatedAt = updatedAt.Time
	}
	return &space, nil
}

func scanItem(row scanner) (*domain.Item, error) {
	var item domain.Item
	var kind, status string
	var failureReason, originalName, mimeFamily, storagePath, extractedText, overflowJSON sql.NullString
	var vectorRef, sizeBytes sql.NullInt64
	var ocr bool
	var createdAt sql.NullTime

	if err := row.Scan(&item.ID, &item.SpaceID, &kind, &item.Content, &item.Notes,
		&status, &failureReason, &vectorRef, &originalName, &sizeBytes, &mimeFamily,
		&ocr, &storagePath, &extractedText, &overflowJSON, &createdAt); err != nil {
		return nil, err
	}

	item.Kind = domain.ItemKind(kind)
	item.Status = domain.ItemStatus(status)
	item.FailureReason = failureReason.String
	if vectorRef.Valid {
		ref := uint64(vectorRef.Int64)
		item.VectorRef = &ref
	}
	if item.Kind == domain.KindFile {
		item.File = &domain.FileInfo{
			OriginalName:  originalName.String,
			SizeBytes:     sizeBytes.Int64,
			Family:        domain.MIMEFamily(mimeFamily.String),
			OCR:           ocr,
			StoragePath:   storagePath.String,
			ExtractedText: extractedText.String,
		}
	}
	if overflowJSON.Valid && overflowJSON.String != "" && overflowJSON.String != "null" {
		if err := json.Unmarshal([]byte(overflowJSON.String), &item.Overflow); err != nil {
			return nil, fmt.Errorf("unmarshaling overflow: %w", err)
		}
	}
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func marshalOverflow(overflow map[string]string) (sql.NullString, error) {
	if len(overflow) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(overflow)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling overflow: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// requireRow converts a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation detects a primary key conflict without importing
// driver internals.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// prefixColumns qualifies each column in list with the table name,
// for joins.
func prefixColumns(table, list string) string {
	cols := strings.Split(list, ",")
	for i, c := range cols {
		cols[i] = table + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
