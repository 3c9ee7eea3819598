package vault

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"report-vault-server/internal/models"
)

// Client carries the network origin of a request into audit entries.
type Client struct {
	IP        string
	UserAgent string
}

const maxUserAgentLen = 200

// AuditLogger appends entries to the report access log. Writes are
// synchronous: a request that reached a grant or deny decision must not
// respond before its entry is durable, and a failed write fails the request.
type AuditLogger struct {
	db *gorm.DB
}

// NewAuditLogger creates an audit logger backed by the given database.
func NewAuditLogger(db *gorm.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record inserts one access log entry. The entry is never touched again
// after this insert. The write survives caller cancellation: once a grant or
// deny decision is reached, its entry gets written even if the client has
// already disconnected.
func (a *AuditLogger) Record(ctx context.Context, entry *models.ReportAccessLog) error {
	if len(entry.UserAgent) > maxUserAgentLen {
		entry.UserAgent = entry.UserAgent[:maxUserAgentLen]
	}
	if err := a.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	return nil
}
