package enquiries

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/dbx"
	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/enquiries"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeEnquiriesRepo struct {
	enquiries.Repository

	mu      sync.Mutex
	rows    map[string]*models.Enquiry
	saves   int
	saveErr error
	getErr  error
	locks   int
}

func newFakeEnquiriesRepo() *fakeEnquiriesRepo {
	return &fakeEnquiriesRepo{rows: map[string]*models.Enquiry{}}
}

func (f *fakeEnquiriesRepo) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return e.Clone(), nil
}

func (f *fakeEnquiriesRepo) GetForUpdate(ctx context.Context, id string) (*models.Enquiry, error) {
	f.mu.Lock()
	f.locks++
	f.mu.Unlock()
	return f.Get(ctx, id)
}

func (f *fakeEnquiriesRepo) Insert(ctx context.Context, e *models.Enquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.rows[e.ID]; ok {
		return common.ErrorAlreadyExists
	}
	f.rows[e.ID] = e.Clone()
	return nil
}

func (f *fakeEnquiriesRepo) Save(ctx context.Context, e *models.Enquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rows[e.ID] = e.Clone()
	return nil
}

func (f *fakeEnquiriesRepo) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	e *fakeEnquiriesRepo
}

func (m *fakeRepoManager) Enquiries(db dbx.DBTX) enquiries.Repository { return m.e }

// failingStore lets the first failAfter puts through to the embedded
// MemoryStore and fails every put after that.
type failingStore struct {
	*attachments.MemoryStore
	err       error
	failAfter int
	puts      int
}

func (f *failingStore) Put(ctx context.Context, prefix string, up attachments.Upload) (string, error) {
	f.puts++
	if f.puts > f.failAfter {
		return "", f.err
	}
	return f.MemoryStore.Put(ctx, prefix, up)
}

// -------- helpers --------

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func enquirySections() []models.FormSection {
	return []models.FormSection{{
		Name:  "enquiry_criteria",
		Order: 1,
		Fields: []models.Field{
			{Name: "enquirer_name", Kind: models.FieldKindText},
			{Name: "child_name", Kind: models.FieldKindText, Indexable: true},
			{Name: "location", Kind: models.FieldKindText, Indexable: true},
			{Name: "gender", Kind: models.FieldKindText, Indexable: true},
			{Name: "photo", Kind: models.FieldKindPhoto},
			{Name: "audio", Kind: models.FieldKindAudio},
		},
	}}
}

type harness struct {
	engine *Engine
	repo   *fakeEnquiriesRepo
	store  *attachments.MemoryStore
	db     *sql.DB
	mock   sqlmock.Sqlmock
}

func newHarness(t *testing.T, store attachments.Store) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mem := attachments.NewMemoryStore()
	if store == nil {
		store = mem
	}
	repo := newFakeEnquiriesRepo()

	ids := 0
	e := NewEngine(db, &fakeRepoManager{e: repo}, store, logging.Nop(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			ids++
			return "enquiry-" + string(rune('0'+ids))
		}),
	)
	return &harness{engine: e, repo: repo, store: mem, db: db, mock: mock}
}

func photo(data string) attachments.Upload {
	return attachments.Upload{Filename: data + ".png", ContentType: "image/png", Data: []byte(data)}
}

func audioUpload() *attachments.Upload {
	return &attachments.Upload{Filename: "sample.mp3", ContentType: "audio/mp3", Data: []byte("ID3-sample")}
}
