package publish

import (
	"context"
	"fmt"
	"sync"

	"kairos/internal/domain/entity"
)

// fakeStore is an in-memory DocumentStore. Errors queued in the *Errs slices
// are returned one per call before falling back to success.
type fakeStore struct {
	mu sync.Mutex

	owned   []entity.OwnedDocument
	created []*entity.DocumentRef
	calls   []string
	deleted []string
	grants  []grant
	nextID  int

	createErrs []error
	insertErrs []error
	moveErrs   []error
	grantErrs  []error
	copyErrs   []error
	listErr    error
	deleteErrs map[string]error
}

type grant struct {
	fileID   string
	email    string
	transfer bool
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeStore) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeStore) CreateDocument(_ context.Context, title string) (*entity.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if err := pop(&f.createErrs); err != nil {
		return nil, err
	}
	f.nextID++
	ref := entity.NewDocumentRef(fmt.Sprintf("doc-%d", f.nextID), title)
	f.created = append(f.created, ref)
	return ref, nil
}

func (f *fakeStore) InsertText(_ context.Context, documentID string, index int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("insert %s@%d", documentID, index))
	return pop(&f.insertErrs)
}

func (f *fakeStore) MoveToFolder(_ context.Context, fileID, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("move %s->%s", fileID, folderID))
	return pop(&f.moveErrs)
}

func (f *fakeStore) GrantAccess(_ context.Context, fileID, email string, transfer bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("grant " + fileID)
	if err := pop(&f.grantErrs); err != nil {
		return err
	}
	f.grants = append(f.grants, grant{fileID: fileID, email: email, transfer: transfer})
	return nil
}

func (f *fakeStore) CopyDocument(_ context.Context, fileID, title, folderID string) (*entity.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("copy %s->%s", fileID, folderID))
	if err := pop(&f.copyErrs); err != nil {
		return nil, err
	}
	f.nextID++
	return entity.NewDocumentRef(fmt.Sprintf("doc-%d", f.nextID), title), nil
}

func (f *fakeStore) ListOwnedDocuments(context.Context) ([]entity.OwnedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]entity.OwnedDocument, len(f.owned))
	copy(out, f.owned)
	return out, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete " + fileID)
	if err, ok := f.deleteErrs[fileID]; ok {
		return err
	}
	f.deleted = append(f.deleted, fileID)
	for i, d := range f.owned {
		if d.ID == fileID {
			f.owned = append(f.owned[:i], f.owned[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
