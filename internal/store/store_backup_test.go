package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"payrecorder.mini/prm/internal/types"
)

func TestBackupCurrentCreatesAndPrunesBackups(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "ledger.db")

	s, err := NewStore(dbFile)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	if _, err := s.Append(context.Background(), account(1), types.PaymentRecord{Recipient: account(2), Amount: types.NewAmount(1)}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	backupPath, err := s.BackupCurrent(3)
	if err != nil {
		t.Fatalf("BackupCurrent: %v", err)
	}
	if backupPath == "" {
		t.Fatalf("expected backup path, got empty string")
	}
	if filepath.Ext(backupPath) != ".db" {
		t.Fatalf("expected .db extension, got %q", filepath.Ext(backupPath))
	}
	if filepath.Dir(backupPath) != filepath.Join(dir, "backups") {
		t.Fatalf("expected backup in backups directory, got %q", filepath.Dir(backupPath))
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("backup file should exist: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.BackupCurrent(3); err != nil {
			t.Fatalf("backup iteration %d: %v", i, err)
		}
	}

	backups, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected 3 backups after pruning, got %d", len(backups))
	}
	for i := 1; i < len(backups); i++ {
		if backups[i].CreatedAt.Before(backups[i-1].CreatedAt) {
			t.Fatalf("backups not sorted oldest first: %+v", backups)
		}
	}
}

func TestExportSnapshotIsOpenableLedger(t *testing.T) {
	ctx := context.Background()

	src, _ := openTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := src.Append(ctx, account(1), types.PaymentRecord{Recipient: account(2), Amount: types.NewAmount(uint64(i)), Timestamp: uint64(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	snapshot, err := src.ExportSnapshot()
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	copyPath := filepath.Join(t.TempDir(), "copy.db")
	if err := os.WriteFile(copyPath, snapshot, 0o600); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	copied, err := NewStore(copyPath)
	if err != nil {
		t.Fatalf("NewStore(snapshot): %v", err)
	}
	defer copied.Close()

	h, err := copied.Load(ctx, account(1))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h) != 3 || h[2].Amount.String() != "2" {
		t.Fatalf("unexpected snapshot history %+v", h)
	}
}

func TestNewStoreRefusesUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "ledger.db")
	ctx := context.Background()

	s, err := NewStore(dbFile)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Append(ctx, account(1), types.PaymentRecord{Recipient: account(2), Amount: types.NewAmount(7)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := s.BackupCurrent(5); err != nil {
		t.Fatalf("BackupCurrent: %v", err)
	}
	s.Close()

	for _, p := range []string{dbFile + "-wal", dbFile + "-shm"} {
		os.Remove(p)
	}

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"corrupt ledger with backup", dbFile, bytes.Repeat([]byte("definitely not sqlite "), 256)},
		{"unrelated json file", filepath.Join(dir, "config.json"), []byte(`{"port": 8080, "db_file": "ledger.db"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(tt.file, tt.data, 0o600); err != nil {
				t.Fatalf("write file: %v", err)
			}

			opened, err := NewStore(tt.file)
			if err == nil {
				opened.Close()
				t.Fatal("expected NewStore to fail")
			}

			after, err := os.ReadFile(tt.file)
			if err != nil {
				t.Fatalf("read file after open: %v", err)
			}
			if !bytes.Equal(after, tt.data) {
				t.Fatalf("file was modified: now %d bytes, starts %q", len(after), after[:min(len(after), 16)])
			}
		})
	}

	backups, err := listBackups(filepath.Join(dir, "backups"), "ledger", ".db")
	if err != nil {
		t.Fatalf("listBackups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected the backup to be left alone, found %d", len(backups))
	}
}
