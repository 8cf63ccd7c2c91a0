package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enquiryForm() models.Form {
	return models.Form{
		Name: models.EnquiryFormName,
		Sections: []models.FormSection{
			{Name: "enquiry_criteria", Order: 1, Fields: []models.Field{
				{Name: "enquirer_name", Kind: models.FieldKindText},
				{Name: "child_name", Kind: models.FieldKindText},
				{Name: "photo", Kind: models.FieldKindPhoto},
				{Name: "audio", Kind: models.FieldKindAudio},
			}},
			{Name: "details", Order: 2, Fields: []models.Field{
				{Name: "location", Kind: models.FieldKindText},
			}},
		},
	}
}

type fakeSource struct {
	forms []models.Form
	err   error
}

func (f *fakeSource) ListForms(ctx context.Context) ([]models.Form, error) {
	return f.forms, f.err
}

func TestResolveSections_DeclarationOrder(t *testing.T) {
	r := NewRegistry(enquiryForm())

	sections := r.ResolveSections(models.EnquiryFormName)
	require.Len(t, sections, 2)
	assert.Equal(t, "enquiry_criteria", sections[0].Name)
	assert.Equal(t, "details", sections[1].Name)

	var names []string
	for _, f := range sections[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"enquirer_name", "child_name", "photo", "audio"}, names)
}

func TestResolveSections_UnknownFormIsEmptyNotNil(t *testing.T) {
	r := NewRegistry()
	sections := r.ResolveSections("Children")
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestResolveSections_ReturnsCopies(t *testing.T) {
	r := NewRegistry(enquiryForm())

	first := r.ResolveSections(models.EnquiryFormName)
	first[0].Fields[0].Name = "mutated"
	first[0].Name = "mutated"

	second := r.ResolveSections(models.EnquiryFormName)
	assert.Equal(t, "enquiry_criteria", second[0].Name)
	assert.Equal(t, "enquirer_name", second[0].Fields[0].Name)
}

func TestRegister_Replaces(t *testing.T) {
	r := NewRegistry(enquiryForm())
	r.Register(models.Form{Name: models.EnquiryFormName, Sections: []models.FormSection{{Name: "only"}}})

	sections := r.ResolveSections(models.EnquiryFormName)
	require.Len(t, sections, 1)
	assert.Equal(t, "only", sections[0].Name)
}

func TestLoad(t *testing.T) {
	r := NewRegistry(models.Form{Name: "Old"})

	err := r.Load(context.Background(), &fakeSource{forms: []models.Form{enquiryForm()}})
	require.NoError(t, err)
	assert.Len(t, r.ResolveSections(models.EnquiryFormName), 2)
	assert.Empty(t, r.ResolveSections("Old"))
}

func TestLoad_ErrorKeepsPrevious(t *testing.T) {
	r := NewRegistry(enquiryForm())

	err := r.Load(context.Background(), &fakeSource{err: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, r.ResolveSections(models.EnquiryFormName), 2)
}

func TestRegistry_ConcurrentReadersAndWriter(t *testing.T) {
	r := NewRegistry(enquiryForm())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i == 0 {
					r.Register(models.Form{Name: fmt.Sprintf("form-%d", j)})
					continue
				}
				sections := r.ResolveSections(models.EnquiryFormName)
				if len(sections) != 2 {
					t.Errorf("unexpected sections: %d", len(sections))
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
