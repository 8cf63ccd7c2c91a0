// Package services contains server-side business logic. This file implements
// EnquiryService: the capability check, schema resolution and search sync
// around the record engine.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/logging"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/authz"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/enquiries"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// Engine is the record engine as used by the service.
type Engine interface {
	Get(ctx context.Context, id string) (*models.Enquiry, error)
	Create(ctx context.Context, sections []models.FormSection, submitted models.Criteria,
		photos []attachments.Upload, audio *attachments.Upload, actor string) (*models.Enquiry, error)
	Update(ctx context.Context, id string, sections []models.FormSection, submitted models.Criteria,
		photos []attachments.Upload, audio *attachments.Upload) (*models.Enquiry, error)
	PrimaryPhoto(ctx context.Context, enq *models.Enquiry) (attachments.Blob, bool, error)
	Audio(ctx context.Context, enq *models.Enquiry) (attachments.Blob, bool, error)
}

// SchemaResolver returns the sections of a named form.
type SchemaResolver interface {
	ResolveSections(formName string) []models.FormSection
}

// SearchNotifier is told about committed enquiries.
type SearchNotifier interface {
	Notify(ctx context.Context, enq *models.Enquiry, indexable []string)
}

// Submission is one create or update request body.
type Submission struct {
	Criteria models.Criteria
	Photos   []attachments.Upload
	Audio    *attachments.Upload
}

// Result pairs an enquiry with the form sections it is interpreted with.
// After a failed create or update, Enquiry holds what was submitted.
type Result struct {
	Enquiry  *models.Enquiry
	Sections []models.FormSection
}

type EnquiryService struct {
	schema SchemaResolver
	gate   authz.Gate
	engine Engine
	search SearchNotifier
	logger logging.Logger
}

func NewEnquiryService(schema SchemaResolver, gate authz.Gate, engine Engine, search SearchNotifier, l logging.Logger) *EnquiryService {
	return &EnquiryService{
		schema: schema,
		gate:   gate,
		engine: engine,
		search: search,
		logger: l.With("module", "enquiry_service"),
	}
}

func (s *EnquiryService) authorize(ctx context.Context, actor authz.Actor, action string) error {
	if !s.gate.Authorize(ctx, actor, action, authz.ResourceEnquiry) {
		s.logger.Warn(ctx, "access denied", "user", actor.UserName, "role", actor.Role, "action", action)
		return fmt.Errorf("%w: %s %s", common.ErrorForbidden, action, authz.ResourceEnquiry)
	}
	return nil
}

func (s *EnquiryService) sections() []models.FormSection {
	return s.schema.ResolveSections(models.EnquiryFormName)
}

// New returns a blank enquiry and the sections to fill in.
func (s *EnquiryService) New(ctx context.Context, actor authz.Actor) (*Result, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate); err != nil {
		return nil, err
	}
	return &Result{Enquiry: &models.Enquiry{Criteria: models.Criteria{}, PhotoKeys: []string{}}, Sections: s.sections()}, nil
}

// Create records a new enquiry on behalf of actor. A submission with no
// criteria and no uploads is rejected with a validation error. On validation
// or persist failures the returned Result carries the attempted enquiry.
func (s *EnquiryService) Create(ctx context.Context, actor authz.Actor, sub Submission) (*Result, error) {
	if err := s.authorize(ctx, actor, authz.ActionCreate); err != nil {
		return nil, err
	}
	sections := s.sections()

	if isEmpty(sections, sub) {
		verr := common.NewValidationError()
		verr.Add("enquiry", "can't be blank")
		return &Result{Enquiry: &models.Enquiry{Criteria: models.Criteria{}, PhotoKeys: []string{}}, Sections: sections}, verr
	}

	enq, err := s.engine.Create(ctx, sections, sub.Criteria, sub.Photos, sub.Audio, actor.UserName)
	if err != nil {
		var perr *enquiries.PersistError
		switch {
		case errors.As(err, &perr):
			return &Result{Enquiry: perr.Attempted, Sections: sections}, err
		case errors.Is(err, common.ErrorValidation):
			attempted := &models.Enquiry{
				Criteria:  enquiries.Partition(sections, sub.Criteria),
				PhotoKeys: []string{},
				CreatedBy: actor.UserName,
			}
			return &Result{Enquiry: attempted, Sections: sections}, err
		default:
			return nil, err
		}
	}

	s.search.Notify(ctx, enq, models.IndexableFieldNames(sections))
	return &Result{Enquiry: enq, Sections: sections}, nil
}

// Show returns an enquiry for display.
func (s *EnquiryService) Show(ctx context.Context, actor authz.Actor, id string) (*Result, error) {
	return s.load(ctx, actor, authz.ActionRead, id)
}

// Edit returns an enquiry for editing.
func (s *EnquiryService) Edit(ctx context.Context, actor authz.Actor, id string) (*Result, error) {
	return s.load(ctx, actor, authz.ActionUpdate, id)
}

func (s *EnquiryService) load(ctx context.Context, actor authz.Actor, action, id string) (*Result, error) {
	if err := s.authorize(ctx, actor, action); err != nil {
		return nil, err
	}
	enq, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Enquiry: enq, Sections: s.sections()}, nil
}

// Update merges sub into the stored enquiry. On validation or persist
// failures the returned Result carries the attempted enquiry.
func (s *EnquiryService) Update(ctx context.Context, actor authz.Actor, id string, sub Submission) (*Result, error) {
	if err := s.authorize(ctx, actor, authz.ActionUpdate); err != nil {
		return nil, err
	}
	sections := s.sections()

	enq, err := s.engine.Update(ctx, id, sections, sub.Criteria, sub.Photos, sub.Audio)
	if err != nil {
		var perr *enquiries.PersistError
		switch {
		case errors.As(err, &perr):
			return &Result{Enquiry: perr.Attempted, Sections: sections}, err
		case errors.Is(err, common.ErrorValidation):
			current, gerr := s.engine.Get(ctx, id)
			if gerr != nil {
				return nil, err
			}
			for k, v := range enquiries.Partition(sections, sub.Criteria) {
				current.Criteria[k] = v
			}
			return &Result{Enquiry: current, Sections: sections}, err
		default:
			return nil, err
		}
	}

	if !isEmpty(sections, sub) {
		s.search.Notify(ctx, enq, models.IndexableFieldNames(sections))
	}
	return &Result{Enquiry: enq, Sections: sections}, nil
}

// PrimaryPhoto returns the first photo of an enquiry. It returns
// common.ErrorNotFound when the enquiry has no photos.
func (s *EnquiryService) PrimaryPhoto(ctx context.Context, actor authz.Actor, id string) (attachments.Blob, error) {
	return s.attachment(ctx, actor, id, s.engine.PrimaryPhoto)
}

// Audio returns the recorded audio of an enquiry. It returns
// common.ErrorNotFound when none is attached.
func (s *EnquiryService) Audio(ctx context.Context, actor authz.Actor, id string) (attachments.Blob, error) {
	return s.attachment(ctx, actor, id, s.engine.Audio)
}

func (s *EnquiryService) attachment(ctx context.Context, actor authz.Actor, id string,
	get func(context.Context, *models.Enquiry) (attachments.Blob, bool, error)) (attachments.Blob, error) {

	if err := s.authorize(ctx, actor, authz.ActionRead); err != nil {
		return attachments.Blob{}, err
	}
	enq, err := s.engine.Get(ctx, id)
	if err != nil {
		return attachments.Blob{}, err
	}
	blob, ok, err := get(ctx, enq)
	if err != nil {
		return attachments.Blob{}, err
	}
	if !ok {
		return attachments.Blob{}, fmt.Errorf("enquiry %s attachment: %w", id, common.ErrorNotFound)
	}
	return blob, nil
}

func isEmpty(sections []models.FormSection, sub Submission) bool {
	return len(enquiries.Partition(sections, sub.Criteria)) == 0 && len(sub.Photos) == 0 && sub.Audio == nil
}
