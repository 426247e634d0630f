package entity

import (
	"fmt"
	"time"
)

// documentURLFormat is the browser URL of a Google Doc.
const documentURLFormat = "https://docs.google.com/document/d/%s/edit"

// DocumentRef identifies a document created by a publish call.
type DocumentRef struct {
	ID    string
	Title string
	URL   string
}

// NewDocumentRef builds a DocumentRef with its browser URL filled in.
func NewDocumentRef(id, title string) *DocumentRef {
	return &DocumentRef{
		ID:    id,
		Title: title,
		URL:   fmt.Sprintf(documentURLFormat, id),
	}
}

// OwnedDocument is a listing entry for a document owned by the current
// identity. Quota recovery sorts these by CreatedTime.
type OwnedDocument struct {
	ID          string
	Name        string
	CreatedTime time.Time
}

// ShareMode selects the best-effort step run after a successful publish.
type ShareMode string

const (
	// ShareModeShare grants writer access to the secondary account.
	ShareModeShare ShareMode = "share"
	// ShareModeTransfer transfers ownership to the secondary account.
	ShareModeTransfer ShareMode = "transfer"
	// ShareModeCopy copies the document and shares the copy.
	ShareModeCopy ShareMode = "copy"
)

// Valid reports whether m is a known share mode.
func (m ShareMode) Valid() bool {
	switch m {
	case ShareModeShare, ShareModeTransfer, ShareModeCopy:
		return true
	}
	return false
}

// ShareResult is the outcome of the post-publish step. It never changes the
// result of the publish it follows.
type ShareResult struct {
	Mode    ShareMode
	Email   string
	Copy    *DocumentRef
	Skipped bool
	Err     error
}

// OK reports whether the step ran without error or was skipped.
func (r ShareResult) OK() bool {
	return r.Err == nil
}
