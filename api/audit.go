package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jmcleod/lockbox/internal/logger"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditVaultCreated     AuditEvent = "vault_created"
	AuditUnlockSuccess    AuditEvent = "unlock_success"
	AuditUnlockFailure    AuditEvent = "unlock_failure"
	AuditUnlockLockedOut  AuditEvent = "unlock_locked_out"
	AuditVaultLocked      AuditEvent = "vault_locked"
	AuditEntryCreated     AuditEvent = "entry_created"
	AuditEntryUpdated     AuditEvent = "entry_updated"
	AuditEntryDeleted     AuditEvent = "entry_deleted"
	AuditVaultExported    AuditEvent = "vault_exported"
	AuditVaultImported    AuditEvent = "vault_imported"
	AuditImportRejected   AuditEvent = "import_rejected"
	AuditPassphrasePolicy AuditEvent = "passphrase_rejected"
)

// auditLogger writes one structured entry per security-relevant action.
// Entries carry ids and counts only.
type auditLogger struct {
	log     *logger.Logger
	metrics *metricsCollector
}

func (al *auditLogger) write(event AuditEvent, r *http.Request, fields func(e *zerolog.Event)) {
	e := al.log.Info().
		Str("event", string(event)).
		Str("remote_addr", r.RemoteAddr)
	if fields != nil {
		fields(e)
	}
	e.Msg("audit")
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logEvent records event with no extra fields.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request) {
	al.write(event, r, nil)
}

// logEntry records an event concerning a single record.
func (al *auditLogger) logEntry(event AuditEvent, r *http.Request, entryID string) {
	al.write(event, r, func(e *zerolog.Event) { e.Str("entry_id", entryID) })
}

// logFailure records a rejected request with a reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string) {
	al.write(event, r, func(e *zerolog.Event) { e.Str("reason", reason) })
}

// logCount records an event with a record count.
func (al *auditLogger) logCount(event AuditEvent, r *http.Request, count int) {
	al.write(event, r, func(e *zerolog.Event) { e.Int("records", count) })
}
