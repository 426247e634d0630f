// Package gdocs is the document provider adapter: the minimal Google Docs v1
// and Drive v3 surface needed to publish a text document into a folder,
// share it and reclaim storage.
package gdocs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"kairos/internal/domain/entity"
	"kairos/internal/resilience/retry"
)

// DocumentMimeType is the Drive MIME type of native Google Docs.
const DocumentMimeType = "application/vnd.google-apps.document"

const listPageSize = 100

// Client wraps the Docs and Drive services.
type Client struct {
	docs  *docs.Service
	drive *drive.Service
}

// New creates a Client. opts are passed to both services, for example
// option.WithHTTPClient with an authorized client.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	docsService, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create docs service: %w", err)
	}
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}
	return &Client{docs: docsService, drive: driveService}, nil
}

// NewWithHTTPClient creates a Client that sends every request through
// httpClient.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	return New(ctx, option.WithHTTPClient(httpClient))
}

// CreateDocument creates an empty Google Doc in the caller's root folder.
func (c *Client) CreateDocument(ctx context.Context, title string) (*entity.DocumentRef, error) {
	doc, err := c.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return entity.NewDocumentRef(doc.DocumentId, doc.Title), nil
}

// InsertText inserts text at index in the document body. Index 1 is the
// start of the body.
func (c *Client) InsertText(ctx context.Context, documentID string, index int64, text string) error {
	req := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: index},
				Text:     text,
			},
		}},
	}
	if _, err := c.docs.Documents.BatchUpdate(documentID, req).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// MoveToFolder reparents a file into folderID, removing every current parent.
func (c *Client) MoveToFolder(ctx context.Context, fileID, folderID string) error {
	file, err := c.drive.Files.Get(fileID).
		Fields("id, parents").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return classify(err)
	}

	call := c.drive.Files.Update(fileID, &drive.File{}).
		AddParents(folderID).
		Fields("id, parents").
		SupportsAllDrives(true)
	if previous := withoutFolder(file.Parents, folderID); len(previous) > 0 {
		call = call.RemoveParents(strings.Join(previous, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// GrantAccess gives email access to a file. With transfer set, ownership is
// transferred; otherwise email becomes a writer.
func (c *Client) GrantAccess(ctx context.Context, fileID, email string, transfer bool) error {
	perm := &drive.Permission{
		Type:         "user",
		Role:         "writer",
		EmailAddress: email,
	}
	call := c.drive.Permissions.Create(fileID, perm).SupportsAllDrives(true)
	if transfer {
		perm.Role = "owner"
		call = call.TransferOwnership(true)
	} else {
		call = call.SendNotificationEmail(false)
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// CopyDocument copies a file, placing the copy in folderID when set.
func (c *Client) CopyDocument(ctx context.Context, fileID, title, folderID string) (*entity.DocumentRef, error) {
	file := &drive.File{Name: title}
	if folderID != "" {
		file.Parents = []string{folderID}
	}
	copied, err := c.drive.Files.Copy(fileID, file).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return entity.NewDocumentRef(copied.Id, copied.Name), nil
}

// ListOwnedDocuments lists every non-trashed Google Doc owned by the caller,
// oldest first.
func (c *Client) ListOwnedDocuments(ctx context.Context) ([]entity.OwnedDocument, error) {
	query := fmt.Sprintf("'me' in owners and mimeType = '%s' and trashed = false", DocumentMimeType)

	var owned []entity.OwnedDocument
	err := c.drive.Files.List().
		Q(query).
		OrderBy("createdTime").
		PageSize(listPageSize).
		Fields("nextPageToken, files(id, name, createdTime)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				created, err := time.Parse(time.RFC3339, f.CreatedTime)
				if err != nil {
					return fmt.Errorf("parse createdTime of %s: %w", f.Id, err)
				}
				owned = append(owned, entity.OwnedDocument{ID: f.Id, Name: f.Name, CreatedTime: created})
			}
			return nil
		})
	if err != nil {
		return nil, classify(err)
	}
	return owned, nil
}

// DeleteDocument permanently deletes a file.
func (c *Client) DeleteDocument(ctx context.Context, fileID string) error {
	if err := c.drive.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

func withoutFolder(parents []string, folderID string) []string {
	out := make([]string, 0, len(parents))
	for _, p := range parents {
		if p != folderID {
			out = append(out, p)
		}
	}
	return out
}

// quotaReasons are googleapi error reasons meaning the account is out of
// storage or API quota.
var quotaReasons = map[string]bool{
	"storageQuotaExceeded": true,
	"quotaExceeded":        true,
}

// rateLimitReasons are googleapi error reasons worth retrying even when the
// status is 403.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify converts a googleapi error into a *retry.HTTPError so the retry
// package can decide on it. Quota errors are permanent and match
// entity.ErrQuotaExceeded; 404 matches entity.ErrDocumentNotFound.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch {
	case IsQuotaError(gerr):
		return retry.Permanent(&retry.HTTPError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        errors.Join(entity.ErrQuotaExceeded, err),
		})
	case gerr.Code == http.StatusNotFound:
		return &retry.HTTPError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        errors.Join(entity.ErrDocumentNotFound, err),
		}
	case gerr.Code == http.StatusForbidden && hasReason(gerr, rateLimitReasons):
		return &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Message: gerr.Message, Err: err}
	default:
		return &retry.HTTPError{StatusCode: gerr.Code, Message: gerr.Message, Err: err}
	}
}

// IsQuotaError reports whether gerr is a quota-exceeded answer: 403 or 429
// with a quota reason, or a message mentioning the storage quota.
func IsQuotaError(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden && gerr.Code != http.StatusTooManyRequests {
		return false
	}
	if hasReason(gerr, quotaReasons) {
		return true
	}
	return strings.Contains(strings.ToLower(gerr.Message), "storage quota")
}

func hasReason(gerr *googleapi.Error, reasons map[string]bool) bool {
	for _, item := range gerr.Errors {
		if reasons[item.Reason] {
			return true
		}
	}
	return false
}
