// Package store provides the durable ledger Store backed by SQLite. It keeps
// every sender's history as ordered rows and the journal of transaction IDs
// the host has already executed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "ledger.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

// Store manages the ledger database file.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
}

// NewStore opens (or creates) the SQLite ledger at filePath. A file that
// cannot be opened as a ledger is reported and left untouched.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := s.openDB(); err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", absPath, err)
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// Path returns the absolute database path.
func (s *Store) Path() string {
	return s.file
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", filepath.Clean(s.file))

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	var schemaVersion int
	if err := db.QueryRow("PRAGMA schema_version").Scan(&schemaVersion); err != nil {
		db.Close()
		return fmt.Errorf("read sqlite header: %w", err)
	}

	// One writer connection keeps append ordering identical to call order.
	db.SetMaxOpenConns(1)

	s.db = db
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS payment_records (
		sender TEXT NOT NULL,
		seq INTEGER NOT NULL,
		recipient TEXT NOT NULL,
		amount TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		PRIMARY KEY (sender, seq)
	)`)
	if err != nil {
		return fmt.Errorf("create payment_records table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS tx_journal (
		sender TEXT NOT NULL,
		id TEXT NOT NULL,
		applied_at INTEGER NOT NULL,
		PRIMARY KEY (sender, id)
	)`)
	if err != nil {
		return fmt.Errorf("create tx_journal table: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

// Load returns the history of id in append order; unknown ids yield an
// empty slice.
func (s *Store) Load(ctx context.Context, id identity.AccountID) ([]types.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT recipient, amount, timestamp
		FROM payment_records WHERE sender = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []types.PaymentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Append adds rec after the last record of id inside one transaction.
func (s *Store) Append(ctx context.Context, id identity.AccountID, rec types.PaymentRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_records WHERE sender = ?`, id.String()).Scan(&count); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("count history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO payment_records (sender, seq, recipient, amount, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		id.String(), count, rec.Recipient.String(), rec.Amount.String(), int64(rec.Timestamp))
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	return count + 1, nil
}

// MarkApplied journals txID for sender. It reports false when sender had
// already used the ID.
func (s *Store) MarkApplied(ctx context.Context, sender identity.AccountID, txID string, appliedAt uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO tx_journal (sender, id, applied_at)
		VALUES (?, ?, ?)`, sender.String(), txID, int64(appliedAt))
	if err != nil {
		return false, fmt.Errorf("journal transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("journal transaction: %w", err)
	}
	return affected == 1, nil
}

// IsApplied reports whether sender already executed txID.
func (s *Store) IsApplied(ctx context.Context, sender identity.AccountID, txID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tx_journal WHERE sender = ? AND id = ?`,
		sender.String(), txID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup transaction: %w", err)
	}
	return n > 0, nil
}

// Stats reports how many senders and records the ledger holds.
func (s *Store) Stats(ctx context.Context) (senders, records int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT sender), COUNT(*) FROM payment_records`).Scan(&senders, &records)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger stats: %w", err)
	}
	return senders, records, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (types.PaymentRecord, error) {
	var (
		recipient, amount string
		timestamp         int64
	)
	if err := scanner.Scan(&recipient, &amount, &timestamp); err != nil {
		return types.PaymentRecord{}, fmt.Errorf("scan record: %w", err)
	}

	to, err := identity.ParseAccountID(recipient)
	if err != nil {
		return types.PaymentRecord{}, fmt.Errorf("stored recipient: %w", err)
	}
	amt, err := types.ParseAmount(amount)
	if err != nil {
		return types.PaymentRecord{}, fmt.Errorf("stored amount: %w", err)
	}

	return types.PaymentRecord{
		Recipient: to,
		Amount:    amt,
		Timestamp: uint64(timestamp),
	}, nil
}
