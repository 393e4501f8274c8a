package api

import (
	"encoding/json"
	"time"

	"github.com/jmcleod/lockbox/vault"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Missing lists unmet passphrase requirements on 422 responses.
	Missing []string `json:"missing,omitempty"`
	// RetryAfterSeconds mirrors the Retry-After header on 429 responses.
	RetryAfterSeconds int `json:"retryAfterSeconds,omitempty"`
}

// PassphraseRequest is the JSON body for POST /vault, POST /vault/unlock and
// POST /export.
type PassphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	Token   string `json:"token"`
	VaultID string `json:"vaultId"`
	Records int    `json:"records"`
}

// VaultStatusResponse is returned from GET /vault.
type VaultStatusResponse struct {
	VaultID     string     `json:"vaultId"`
	Exists      bool       `json:"exists"`
	Unlocked    bool       `json:"unlocked"`
	Failures    int        `json:"failures"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

// EntryRequest is the JSON body for POST /entries.
type EntryRequest struct {
	Title    string   `json:"title"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Tags     []string `json:"tags"`
}

// EntryPatchRequest is the JSON body for PATCH /entries/{entryID}. Omitted
// fields are left unchanged.
type EntryPatchRequest struct {
	Title    *string   `json:"title,omitempty"`
	Username *string   `json:"username,omitempty"`
	Password *string   `json:"password,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// ListEntriesResponse is returned from GET /entries.
type ListEntriesResponse struct {
	Entries []vault.Record `json:"entries"`
	PaginationMeta
}

// ImportRequest is the JSON body for POST /import. Document is the export
// file exactly as produced by POST /export.
type ImportRequest struct {
	Passphrase string          `json:"passphrase"`
	Document   json.RawMessage `json:"document"`
}

// ImportResponse is returned from POST /import.
type ImportResponse struct {
	Report   vault.MergeReport    `json:"report"`
	Metadata vault.ImportMetadata `json:"metadata"`
}
