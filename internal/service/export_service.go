package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/auth-api/internal/models"
	appErrors "github.com/campushub/auth-api/pkg/errors"
	"github.com/campushub/auth-api/pkg/export"
	"github.com/campushub/auth-api/pkg/storage"
)

type auditSource interface {
	ListAuditLogs(ctx context.Context, since time.Time, limit int) ([]models.AuditLog, error)
}

// exportRowLimit caps a single export so an unbounded window cannot pull the
// whole table into memory.
const exportRowLimit = 10000

// ExportResult describes a finished export and how to fetch it.
type ExportResult struct {
	Filename  string    `json:"filename"`
	Rows      int       `json:"rows"`
	Token     string    `json:"download_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders audit trail extracts to local files and hands out
// signed download tokens for them.
type ExportService struct {
	audits auditSource
	store  *storage.LocalStorage
	signer *storage.DownloadSigner
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(audits auditSource, store *storage.LocalStorage, signer *storage.DownloadSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{audits: audits, store: store, signer: signer, logger: logger}
}

// ExportAuditLogs renders audit entries from the given window into a CSV file
// and returns a signed token for downloading it.
func (s *ExportService) ExportAuditLogs(ctx context.Context, window time.Duration) (*ExportResult, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := time.Now().UTC().Add(-window)

	logs, err := s.audits.ListAuditLogs(ctx, since, exportRowLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect audit logs")
	}

	table := export.Table{
		Headers: []string{"id", "user_id", "action", "ip_address", "user_agent", "created_at"},
		Rows:    make([][]string, 0, len(logs)),
	}
	for _, entry := range logs {
		userID := ""
		if entry.UserID != nil {
			userID = *entry.UserID
		}
		table.Rows = append(table.Rows, []string{
			entry.ID,
			userID,
			entry.Action,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := export.RenderCSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}

	filename := fmt.Sprintf("audit/audit-logs-%s.csv", time.Now().UTC().Format("20060102T150405"))
	if err := s.store.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store audit export")
	}

	token, expiresAt, err := s.signer.Sign(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	s.logger.Sugar().Infow("audit export created", "filename", filename, "rows", len(table.Rows))
	return &ExportResult{
		Filename:  filename,
		Rows:      len(table.Rows),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// OpenDownload validates a signed token and opens the file it references.
// The caller owns closing the returned handle.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	filename, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.store.Open(filename)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, filename, nil
}
