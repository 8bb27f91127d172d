// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// itemScopeUnit marks an item-level row in the assignments table.
const itemScopeUnit = -1

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers: UpdateSession's
	// read-modify-write runs without interleaving.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a new session to the database.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *models.Session) error {
	// Generate ID and timestamps if not set
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}
	if session.LastUpdated == 0 {
		session.LastUpdated = time.Now().UnixMilli()
	}
	if session.Title == "" {
		session.Title = generateTitle(session.Participants)
	}
	if session.Status == "" {
		session.Status = models.StatusAssigning
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved, err := json.Marshal(session.SavedModes)
	if err != nil {
		return fmt.Errorf("failed to encode saved modes: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, title, status, decimal_places, number_format, currency_symbol,
			subtotal, allow_editor_items, passcode_hash, created_at, expires_at, last_updated, saved_modes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, string(session.Status),
		session.Currency.DecimalPlaces, session.Currency.NumberFormat, session.Currency.Symbol,
		session.Subtotal, session.AllowEditorItems, session.PasscodeHash,
		session.CreatedAt, session.ExpiresAt, session.LastUpdated, string(saved),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertChildren(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID, including everything nested under it.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return loadSession(ctx, s.db, sessionID)
}

// UpdateSession loads the session inside a transaction, applies fn and
// rewrites the session row and all of its children before committing.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sessionID string, fn storage.UpdateFunc) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := loadSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	saved, err := json.Marshal(session.SavedModes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode saved modes: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET title = ?, status = ?, decimal_places = ?, number_format = ?,
			currency_symbol = ?, subtotal = ?, allow_editor_items = ?, passcode_hash = ?,
			expires_at = ?, last_updated = ?, saved_modes = ?
		WHERE id = ?`,
		session.Title, string(session.Status), session.Currency.DecimalPlaces,
		session.Currency.NumberFormat, session.Currency.Symbol, session.Subtotal,
		session.AllowEditorItems, session.PasscodeHash, session.ExpiresAt,
		session.LastUpdated, string(saved), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	for _, table := range []string{"participants", "items", "assignments", "charges", "totals"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := insertChildren(ctx, tx, session); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return session, nil
}

// DeleteSession removes a session; child rows cascade.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return common.NotFoundf("session %s", sessionID)
	}
	return nil
}

// DeleteExpired removes sessions past their TTL.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at > 0 AND expires_at <= ?",
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	return n, nil
}

// insertChildren writes participants, items, assignments, charges and totals.
func insertChildren(ctx context.Context, tx *sql.Tx, session *models.Session) error {
	for i, p := range session.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO participants (session_id, id, position, name, role, phone) VALUES (?, ?, ?, ?, ?, ?)",
			session.ID, p.ID, i, p.Name, string(p.Role), p.Phone,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for i, item := range session.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO items (session_id, id, position, name, unit_price, quantity, mode, per_unit) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			session.ID, item.ID, i, item.Name, item.UnitPrice, item.Quantity, string(item.Mode), item.PerUnit,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	for scope, shares := range session.Assignments {
		unit := itemScopeUnit
		if scope.IsUnit() {
			unit = scope.Unit
		}
		for i, sh := range shares {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO assignments (session_id, item_id, unit, position, participant_id, quantity) VALUES (?, ?, ?, ?, ?, ?)",
				session.ID, scope.ItemID, unit, i, sh.ParticipantID, sh.Quantity,
			)
			if err != nil {
				return fmt.Errorf("failed to insert assignment: %w", err)
			}
		}
	}

	for i, c := range session.Charges {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO charges (session_id, id, position, name, value, value_type, is_discount, distribution) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			session.ID, c.ID, i, c.Name, c.Value, string(c.ValueType), c.IsDiscount, string(c.Distribution),
		)
		if err != nil {
			return fmt.Errorf("failed to insert charge: %w", err)
		}
	}

	for i, t := range session.Totals {
		charges, err := json.Marshal(t.Charges)
		if err != nil {
			return fmt.Errorf("failed to encode total charges: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO totals (session_id, participant_id, position, name, subtotal, total, charges) VALUES (?, ?, ?, ?, ?, ?, ?)",
			session.ID, t.ParticipantID, i, t.Name, t.Subtotal, t.Total, string(charges),
		)
		if err != nil {
			return fmt.Errorf("failed to insert total: %w", err)
		}
	}

	return nil
}

// loadSession reads a full session through q, which may be a transaction.
func loadSession(ctx context.Context, q queryer, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	var status, saved string
	err := q.QueryRowContext(ctx,
		`SELECT id, title, status, decimal_places, number_format, currency_symbol, subtotal,
			allow_editor_items, passcode_hash, created_at, expires_at, last_updated, saved_modes
		FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &session.Title, &status,
		&session.Currency.DecimalPlaces, &session.Currency.NumberFormat, &session.Currency.Symbol,
		&session.Subtotal, &session.AllowEditorItems, &session.PasscodeHash,
		&session.CreatedAt, &session.ExpiresAt, &session.LastUpdated, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("session %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.Status = models.SessionStatus(status)

	session.SavedModes = models.SavedModes{}
	if err := json.Unmarshal([]byte(saved), &session.SavedModes); err != nil {
		return nil, fmt.Errorf("failed to decode saved modes: %w", err)
	}
	if session.SavedModes == nil {
		session.SavedModes = models.SavedModes{}
	}

	if err := loadParticipants(ctx, q, session); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, session); err != nil {
		return nil, err
	}
	if err := loadAssignments(ctx, q, session); err != nil {
		return nil, err
	}
	if err := loadCharges(ctx, q, session); err != nil {
		return nil, err
	}
	if err := loadTotals(ctx, q, session); err != nil {
		return nil, err
	}

	return session, nil
}

func loadParticipants(ctx context.Context, q queryer, session *models.Session) error {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, role, phone FROM participants WHERE session_id = ? ORDER BY position",
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &role, &p.Phone); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Role = models.Role(role)
		session.Participants = append(session.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}
	return nil
}

func loadItems(ctx context.Context, q queryer, session *models.Session) error {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, unit_price, quantity, mode, per_unit FROM items WHERE session_id = ? ORDER BY position",
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.Item
		var mode string
		if err := rows.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.Quantity, &mode, &item.PerUnit); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.Mode = models.ItemMode(mode)
		session.Items = append(session.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items: %w", err)
	}
	return nil
}

func loadAssignments(ctx context.Context, q queryer, session *models.Session) error {
	rows, err := q.QueryContext(ctx,
		"SELECT item_id, unit, participant_id, quantity FROM assignments WHERE session_id = ? ORDER BY item_id, unit, position",
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get assignments: %w", err)
	}
	defer rows.Close()

	session.Assignments = models.Assignments{}
	for rows.Next() {
		var itemID string
		var unit int
		var sh models.Share
		if err := rows.Scan(&itemID, &unit, &sh.ParticipantID, &sh.Quantity); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		scope := models.ItemScope(itemID)
		if unit != itemScopeUnit {
			scope = models.UnitScope(itemID, unit)
		}
		session.Assignments[scope] = append(session.Assignments[scope], sh)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return nil
}

func loadCharges(ctx context.Context, q queryer, session *models.Session) error {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, value, value_type, is_discount, distribution FROM charges WHERE session_id = ? ORDER BY position",
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get charges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Charge
		var valueType, dist string
		if err := rows.Scan(&c.ID, &c.Name, &c.Value, &valueType, &c.IsDiscount, &dist); err != nil {
			return fmt.Errorf("failed to scan charge: %w", err)
		}
		c.ValueType = models.ValueType(valueType)
		c.Distribution = models.Distribution(dist)
		session.Charges = append(session.Charges, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate charges: %w", err)
	}
	return nil
}

// loadTotals leaves Totals nil unless the session is finalized.
func loadTotals(ctx context.Context, q queryer, session *models.Session) error {
	if session.Status != models.StatusFinalized {
		return nil
	}
	rows, err := q.QueryContext(ctx,
		"SELECT participant_id, name, subtotal, total, charges FROM totals WHERE session_id = ? ORDER BY position",
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get totals: %w", err)
	}
	defer rows.Close()

	session.Totals = []models.ParticipantTotal{}
	for rows.Next() {
		var t models.ParticipantTotal
		var charges string
		if err := rows.Scan(&t.ParticipantID, &t.Name, &t.Subtotal, &t.Total, &charges); err != nil {
			return fmt.Errorf("failed to scan total: %w", err)
		}
		if err := json.Unmarshal([]byte(charges), &t.Charges); err != nil {
			return fmt.Errorf("failed to decode total charges: %w", err)
		}
		session.Totals = append(session.Totals, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate totals: %w", err)
	}
	return nil
}

// generateTitle creates an auto-generated title from participant names.
func generateTitle(participants []models.Participant) string {
	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name
	}
	if len(names) == 0 {
		return fmt.Sprintf("Bill - %s", time.Now().Format("Jan 2, 2006"))
	}
	if len(names) <= 3 {
		return fmt.Sprintf("Split with %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("Split with %s and %d others",
		strings.Join(names[:2], ", "),
		len(names)-2,
	)
}
