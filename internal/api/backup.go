package api

import (
	"fmt"
	"net/http"
	"time"
)

// @Title: Create Backup
// @Route: POST /api/backup
// @Description: Snapshot the ledger database into the backup directory
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups need sqlite storage")
		return
	}

	backupPath, err := s.backups.BackupCurrent(s.maxBackups)
	if err != nil {
		s.logger.Errorf("Failed to create backup: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to save backup")
		return
	}

	s.logger.Infof("API: Created backup at: %s", backupPath)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}

// @Title: List Backups
// @Route: GET /api/backups
// @Description: Available ledger snapshots, oldest first
// @Response: Array of backup descriptors
func (s *Service) HandleBackupsList(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups need sqlite storage")
		return
	}

	backups, err := s.backups.ListBackups()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}
	s.writeJSON(w, http.StatusOK, backups)
}

// @Title: Download Snapshot
// @Route: GET /api/backup/download
// @Description: Download a consistent SQLite snapshot of the ledger
// @Response: application/vnd.sqlite3 file download
func (s *Service) HandleBackupDownload(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups need sqlite storage")
		return
	}

	snapshot, err := s.backups.ExportSnapshot()
	if err != nil {
		s.logger.Errorf("Failed to export snapshot: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to export snapshot")
		return
	}

	filename := fmt.Sprintf("prm-ledger-%s.db", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(snapshot)
	s.logger.Infof("API: Served snapshot download: %s", filename)
}
