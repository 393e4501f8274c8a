package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/lockbox/vault"
)

func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if _, err := dec.Token(); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// VaultStatus handles GET /vault.
func (a *API) VaultStatus(w http.ResponseWriter, r *http.Request) {
	exists, err := a.vault.Exists(r.Context())
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.mu.Lock()
	unlocked := a.session != nil
	a.mu.Unlock()

	state := a.vault.Guard().State()
	resp := VaultStatusResponse{
		VaultID:  a.vault.ID(),
		Exists:   exists,
		Unlocked: unlocked,
		Failures: state.Failures,
	}
	if !state.LockedUntil.IsZero() {
		resp.LockedUntil = &state.LockedUntil
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateVault handles POST /vault.
func (a *API) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req PassphraseRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	session, err := a.vault.Create(r.Context(), req.Passphrase)
	if err != nil {
		var policy *vault.PolicyError
		if errors.As(err, &policy) {
			a.audit.logFailure(AuditPassphrasePolicy, r, "master policy")
		}
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditVaultCreated, r)
	a.respondSession(w, r, http.StatusCreated, session, 0)
}

// UnlockVault handles POST /vault/unlock.
func (a *API) UnlockVault(w http.ResponseWriter, r *http.Request) {
	var req PassphraseRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	session, err := a.vault.Unlock(r.Context(), req.Passphrase)
	switch {
	case errors.Is(err, vault.ErrLockedOut):
		a.audit.logEvent(AuditUnlockLockedOut, r)
	case errors.Is(err, vault.ErrWrongPassphrase):
		a.audit.logFailure(AuditUnlockFailure, r, "wrong passphrase")
	}
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	records, err := session.List(r.Context())
	if err != nil {
		session.Lock()
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditUnlockSuccess, r)
	a.respondSession(w, r, http.StatusOK, session, len(records))
}

func (a *API) respondSession(w http.ResponseWriter, r *http.Request, status int, s *vault.Session, records int) {
	token, err := a.bindSession(s)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, status, SessionResponse{
		Token:   token,
		VaultID: s.VaultID(),
		Records: records,
	})
}

// LockVault handles POST /vault/lock.
func (a *API) LockVault(w http.ResponseWriter, r *http.Request) {
	sessionFromContext(r.Context()).Lock()
	a.audit.logEvent(AuditVaultLocked, r)
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries handles GET /entries. The optional q parameter filters by
// title, username and tags.
func (a *API) ListEntries(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	records, err := session.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	limit, offset := parsePagination(r)
	entries, meta := page(records, limit, offset)
	writeJSON(w, http.StatusOK, ListEntriesResponse{Entries: entries, PaginationMeta: meta})
}

// CreateEntry handles POST /entries.
func (a *API) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	rec, err := sessionFromContext(r.Context()).Add(r.Context(), vault.NewRecord{
		Title:    req.Title,
		Username: req.Username,
		Password: req.Password,
		Tags:     req.Tags,
	})
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEntry(AuditEntryCreated, r, rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// GetEntry handles GET /entries/{entryID}.
func (a *API) GetEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := sessionFromContext(r.Context()).Get(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateEntry handles PATCH /entries/{entryID}.
func (a *API) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryPatchRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "entryID")
	rec, err := sessionFromContext(r.Context()).Update(r.Context(), id, vault.RecordUpdate{
		Title:    req.Title,
		Username: req.Username,
		Password: req.Password,
		Tags:     req.Tags,
	})
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEntry(AuditEntryUpdated, r, id)
	writeJSON(w, http.StatusOK, rec)
}

// DeleteEntry handles DELETE /entries/{entryID}.
func (a *API) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entryID")
	if err := sessionFromContext(r.Context()).Remove(r.Context(), id); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEntry(AuditEntryDeleted, r, id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportVault handles POST /export. The response body is the export file.
func (a *API) ExportVault(w http.ResponseWriter, r *http.Request) {
	var req PassphraseRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	session := sessionFromContext(r.Context())
	file, err := session.Export(r.Context(), req.Passphrase)
	if err != nil {
		var policy *vault.PolicyError
		if errors.As(err, &policy) {
			a.audit.logFailure(AuditPassphrasePolicy, r, "export policy")
		}
		a.mapError(w, r, err)
		return
	}
	a.audit.logCount(AuditVaultExported, r, file.RecordCount)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="lockbox-export.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// ImportVault handles POST /import: the document is decrypted, validated and
// merged into the unlocked vault in one step.
func (a *API) ImportVault(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	result, err := a.vault.Import(r.Context(), req.Passphrase, req.Document)
	if err != nil {
		a.audit.logFailure(AuditImportRejected, r, importRejectReason(err))
		a.mapError(w, r, err)
		return
	}
	report, err := sessionFromContext(r.Context()).Merge(r.Context(), result.Contents)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logCount(AuditVaultImported, r, report.TotalImported)
	writeJSON(w, http.StatusOK, ImportResponse{Report: *report, Metadata: result.Metadata})
}

func importRejectReason(err error) string {
	switch {
	case errors.Is(err, vault.ErrInvalidFormat):
		return "invalid format"
	case errors.Is(err, vault.ErrWrongPassphrase):
		return "wrong passphrase"
	case errors.Is(err, vault.ErrCorruptVault):
		return "corrupt data"
	default:
		return "error"
	}
}
