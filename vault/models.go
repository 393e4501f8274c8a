// Package vault implements a local credential vault: a list of records
// encrypted under a key derived from the owner's passphrase, an unlock guard
// that throttles guessing, and a passphrase-protected export format.
package vault

import (
	"slices"
	"strings"
	"time"
)

const (
	MaxIDLength    = 128
	MaxFieldLength = 4096
	MaxTagLength   = 128
	MaxTagCount    = 64
)

// Record is a single stored credential.
type Record struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Tags     []string `json:"tags"`
}

func (r Record) clone() Record {
	r.Tags = slices.Clone(r.Tags)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

// NewRecord holds the caller-supplied fields of a record to be added.
type NewRecord struct {
	Title    string
	Username string
	Password string
	Tags     []string
}

// RecordUpdate is a partial update. Nil fields are left unchanged.
type RecordUpdate struct {
	Title    *string
	Username *string
	Password *string
	Tags     *[]string
}

func (u RecordUpdate) apply(r *Record) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Username != nil {
		r.Username = *u.Username
	}
	if u.Password != nil {
		r.Password = *u.Password
	}
	if u.Tags != nil {
		r.Tags = normalizeTags(*u.Tags)
	}
}

// Contents is the plaintext state of a vault. Entries are kept in insertion
// order.
type Contents struct {
	Entries []Record `json:"entries"`
}

func (c *Contents) clone() *Contents {
	out := &Contents{Entries: make([]Record, len(c.Entries))}
	for i, r := range c.Entries {
		out.Entries[i] = r.clone()
	}
	return out
}

func (c *Contents) indexOf(id string) int {
	return slices.IndexFunc(c.Entries, func(r Record) bool { return r.ID == id })
}

func (c *Contents) ids() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.Entries))
	for _, r := range c.Entries {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// normalizeTags trims tags, drops empty ones and removes duplicates while
// keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// MergeReport summarises a Merge.
type MergeReport struct {
	TotalImported     int `json:"totalImported"`
	ConflictsResolved int `json:"conflictsResolved"`
	NewEntriesAdded   int `json:"newEntriesAdded"`
	TotalEntries      int `json:"totalEntries"`
}

// ImportMetadata describes a successfully decrypted export.
type ImportMetadata struct {
	ImportedAt         time.Time `json:"importedAt"`
	OriginalExportDate time.Time `json:"originalExportDate"`
	EntriesCount       int       `json:"entriesCount"`
	Version            string    `json:"version"`
}

// ImportResult is the output of Import. Contents is ready to be merged.
type ImportResult struct {
	Contents *Contents
	Metadata ImportMetadata
}
