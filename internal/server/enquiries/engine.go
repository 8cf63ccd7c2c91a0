// Package enquiries implements the record engine: it validates dynamic
// criteria against a form schema, routes photo/audio uploads to the
// attachment store, and commits whole records.
package enquiries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/dbx"
	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/metrics"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/schema"
)

const (
	opCreate = "create"
	opUpdate = "update"
)

// Engine creates and updates enquiries. Authorization is the caller's
// concern; by the time the engine runs the action is permitted.
type Engine struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	store         attachments.Store
	logger        logging.Logger
	metrics       *metrics.Metrics
	maxUploadSize int64
	maxPhotos     int

	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records engine outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxUploadSize limits the size of each uploaded file.
func WithMaxUploadSize(n int64) Option {
	return func(e *Engine) { e.maxUploadSize = n }
}

// WithMaxPhotos limits the number of photos per submission.
func WithMaxPhotos(n int) Option {
	return func(e *Engine) { e.maxPhotos = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides enquiry id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func NewEngine(db *sql.DB, rm repomanager.RepositoryManager, store attachments.Store, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		repomanager: rm,
		store:       store,
		logger:      logger.With("module", "enquiries"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get loads an enquiry by id.
func (e *Engine) Get(ctx context.Context, id string) (*models.Enquiry, error) {
	enq, err := e.repomanager.Enquiries(e.db).Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load enquiry %s: %w", id, err)
	}
	return enq, nil
}

// Create stores the uploads, then persists a new enquiry whose criteria are
// the submitted non-attachment values. An empty submission is accepted.
// On a failed commit the returned error is a *PersistError.
func (e *Engine) Create(ctx context.Context, sections []models.FormSection, submitted models.Criteria,
	photos []attachments.Upload, audio *attachments.Upload, actor string) (enq *models.Enquiry, err error) {

	start := e.now()
	defer func() { e.metrics.ObserveEngine(opCreate, result(err), e.now().Sub(start)) }()

	criteria := Partition(sections, submitted)
	if err := e.validate(sections, criteria, photos, audio); err != nil {
		return nil, err
	}

	photoKeys, audioKey, err := e.storeAttachments(ctx, photos, audio)
	if err != nil {
		return nil, err
	}

	now := e.timestamp()
	draft := &models.Enquiry{
		ID:            e.newID(),
		Criteria:      criteria,
		PhotoKeys:     photoKeys,
		RecordedAudio: audioKey,
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if draft.PhotoKeys == nil {
		draft.PhotoKeys = []string{}
	}

	if err := e.repomanager.Enquiries(e.db).Insert(ctx, draft); err != nil {
		e.logger.Error(ctx, "enquiry not saved", "id", draft.ID, "error", err)
		return nil, &PersistError{Attempted: draft, Err: err}
	}

	e.logger.Info(ctx, "enquiry created", "id", draft.ID, "created_by", actor, "photos", len(draft.PhotoKeys))
	return draft.Clone(), nil
}

// Update merges submitted criteria into the stored enquiry: submitted keys
// overwrite or add, absent keys are kept. A non-empty photo list replaces
// all photo keys; a non-nil audio replaces the audio key; otherwise the
// existing attachments are preserved. created_by never changes.
//
// When nothing was submitted, or the merge yields identical content, the
// stored enquiry is returned and nothing is written.
func (e *Engine) Update(ctx context.Context, id string, sections []models.FormSection, submitted models.Criteria,
	photos []attachments.Upload, audio *attachments.Upload) (enq *models.Enquiry, err error) {

	start := e.now()
	defer func() { e.metrics.ObserveEngine(opUpdate, result(err), e.now().Sub(start)) }()

	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	criteria := Partition(sections, submitted)
	if len(criteria) == 0 && len(photos) == 0 && audio == nil {
		return current, nil
	}
	if err := e.validate(sections, criteria, photos, audio); err != nil {
		return nil, err
	}

	photoKeys, audioKey, err := e.storeAttachments(ctx, photos, audio)
	if err != nil {
		return nil, err
	}

	now := e.timestamp()
	attempted := merge(current, criteria, photoKeys, audioKey, now)
	var saved *models.Enquiry

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := e.repomanager.Enquiries(tx)

		locked, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		draft := merge(locked, criteria, photoKeys, audioKey, now)
		attempted = draft
		if draft.SameContent(locked) {
			saved = locked
			return nil
		}
		if err := repo.Save(ctx, draft); err != nil {
			return err
		}
		saved = draft
		return nil
	})

	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("load enquiry %s: %w", id, err)
		}
		e.logger.Error(ctx, "enquiry not updated", "id", id, "error", err)
		return nil, &PersistError{Attempted: attempted, Err: err}
	}

	e.logger.Info(ctx, "enquiry updated", "id", id, "photos_replaced", photoKeys != nil, "audio_replaced", audioKey != "")
	return saved.Clone(), nil
}

// PrimaryPhoto returns the blob under the enquiry's first photo key. ok is
// false when the enquiry has no photos.
func (e *Engine) PrimaryPhoto(ctx context.Context, enq *models.Enquiry) (blob attachments.Blob, ok bool, err error) {
	key, ok := enq.PrimaryPhotoKey()
	if !ok {
		return attachments.Blob{}, false, nil
	}
	return e.blob(ctx, key)
}

// Audio returns the enquiry's recorded audio blob. ok is false when none is bound.
func (e *Engine) Audio(ctx context.Context, enq *models.Enquiry) (blob attachments.Blob, ok bool, err error) {
	if !enq.HasAudio() {
		return attachments.Blob{}, false, nil
	}
	return e.blob(ctx, enq.RecordedAudio)
}

func (e *Engine) blob(ctx context.Context, key string) (attachments.Blob, bool, error) {
	b, err := e.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return attachments.Blob{}, false, fmt.Errorf("attachment %s: %w", key, err)
		}
		return attachments.Blob{}, false, fmt.Errorf("%w: %s: %w", common.ErrorAttachmentStore, key, err)
	}
	return b, true, nil
}

func (e *Engine) validate(sections []models.FormSection, criteria models.Criteria,
	photos []attachments.Upload, audio *attachments.Upload) error {

	verr := common.NewValidationError()
	if err := schema.Validate(sections, criteria); err != nil {
		var v *common.ValidationError
		if !errors.As(err, &v) {
			return err
		}
		for field, msg := range v.Fields {
			verr.Add(field, msg)
		}
	}

	if e.maxPhotos > 0 && len(photos) > e.maxPhotos {
		verr.Add(models.PhotoFieldName, fmt.Sprintf("has too many files (maximum is %d)", e.maxPhotos))
	}
	for _, p := range photos {
		if msg := attachments.Check(attachments.PhotoPrefix, p, e.maxUploadSize); msg != "" {
			verr.Add(models.PhotoFieldName, msg)
		}
	}
	if audio != nil {
		if msg := attachments.Check(attachments.AudioPrefix, *audio, e.maxUploadSize); msg != "" {
			verr.Add(models.AudioFieldName, msg)
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// storeAttachments writes photos in submission order, then audio. Nothing is
// returned unless every write succeeded. photoKeys is nil when no photos were
// submitted and audioKey is "" when no audio was submitted.
func (e *Engine) storeAttachments(ctx context.Context, photos []attachments.Upload, audio *attachments.Upload) (photoKeys []string, audioKey string, err error) {
	if len(photos) > 0 {
		photoKeys, err = attachments.PutAll(ctx, e.store, attachments.PhotoPrefix, photos)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", common.ErrorAttachmentStore, err)
		}
		for _, p := range photos {
			e.metrics.AddAttachmentBytes(attachments.PhotoPrefix, len(p.Data))
		}
	}

	if audio != nil {
		audioKey, err = e.store.Put(ctx, attachments.AudioPrefix, *audio)
		if err != nil {
			return nil, "", fmt.Errorf("%w: store audio: %w", common.ErrorAttachmentStore, err)
		}
		e.metrics.AddAttachmentBytes(attachments.AudioPrefix, len(audio.Data))
	}

	if photoKeys != nil || audioKey != "" {
		e.logger.Debug(ctx, "attachments stored", "photos", photoKeys, "audio", audioKey)
	}
	return photoKeys, audioKey, nil
}

// timestamp truncates to microseconds, the precision PostgreSQL keeps.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func merge(base *models.Enquiry, criteria models.Criteria, photoKeys []string, audioKey string, now time.Time) *models.Enquiry {
	draft := base.Clone()
	for k, v := range criteria.Clone() {
		draft.Criteria[k] = v
	}
	if photoKeys != nil {
		draft.PhotoKeys = append([]string{}, photoKeys...)
	}
	if audioKey != "" {
		draft.RecordedAudio = audioKey
	}
	if !draft.SameContent(base) {
		draft.UpdatedAt = now
	}
	return draft
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorValidation):
		return "invalid"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorAttachmentStore):
		return "attachment_error"
	default:
		return "persist_error"
	}
}
