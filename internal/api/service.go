// Package api exposes the ledger over HTTP. Writes and own-history reads
// arrive as signed transactions and are handed to the host unchanged; the
// host decides who the caller is. Arbitrary history reads are plain GETs.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/host"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/store"
)

const maxBodyBytes = 64 << 10

// Host is the execution environment calls are dispatched to.
type Host interface {
	CheckTx(ctx context.Context, raw []byte) host.Response
	DeliverTx(ctx context.Context, raw []byte) host.Response
	Query(ctx context.Context, path string) host.Response
}

// Backups is the optional durable store surface (nil in memory mode).
type Backups interface {
	BackupCurrent(maxBackups int) (string, error)
	ExportSnapshot() ([]byte, error)
	ListBackups() ([]store.Backup, error)
	Stats(ctx context.Context) (senders, records int, err error)
}

// EventFeed exposes recently emitted notifications.
type EventFeed interface {
	Recent(n int) []events.Event
}

// Service handles API requests
type Service struct {
	host       Host
	backups    Backups
	events     EventFeed
	logger     *logger.Logger
	maxBackups int
}

// NewService creates a new API service
func NewService(h Host, backups Backups, feed EventFeed, logger *logger.Logger, maxBackups int) *Service {
	return &Service{
		host:       h,
		backups:    backups,
		events:     feed,
		logger:     logger,
		maxBackups: maxBackups,
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a host response code to an HTTP status.
func statusFor(code uint32) int {
	switch code {
	case host.CodeTypeOK:
		return http.StatusOK
	case host.CodeTypeEncodingError:
		return http.StatusBadRequest
	case host.CodeTypeAuthError:
		return http.StatusUnauthorized
	case host.CodeTypeInvalidTx:
		return http.StatusUnprocessableEntity
	case host.CodeTypeDuplicate:
		return http.StatusConflict
	case host.CodeTypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
