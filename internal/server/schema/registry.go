// Package schema holds the declarative form definitions the record engine
// validates against. The registry is read-mostly: it is loaded at startup
// (and on reload) and then served concurrently to request handlers.
package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// Source lists every configured form. The Postgres forms repository
// satisfies it.
type Source interface {
	ListForms(ctx context.Context) ([]models.Form, error)
}

// Registry maps form names to their ordered sections.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]models.Form
}

func NewRegistry(forms ...models.Form) *Registry {
	r := &Registry{forms: make(map[string]models.Form, len(forms))}
	for _, f := range forms {
		r.forms[f.Name] = f.Clone()
	}
	return r
}

// Register adds or replaces a form by name.
func (r *Registry) Register(form models.Form) {
	cp := form.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[form.Name] = cp
}

// Load replaces the registry contents with everything src returns. On error
// the previous contents stay in place.
func (r *Registry) Load(ctx context.Context, src Source) error {
	forms, err := src.ListForms(ctx)
	if err != nil {
		return fmt.Errorf("load forms: %w", err)
	}

	next := make(map[string]models.Form, len(forms))
	for _, f := range forms {
		next[f.Name] = f.Clone()
	}

	r.mu.Lock()
	r.forms = next
	r.mu.Unlock()
	return nil
}

// ResolveSections returns the sections of formName in declaration order, each
// with its fields in declaration order. Unknown names yield an empty slice.
func (r *Registry) ResolveSections(formName string) []models.FormSection {
	r.mu.RLock()
	form, ok := r.forms[formName]
	r.mu.RUnlock()

	if !ok {
		return []models.FormSection{}
	}
	return form.Clone().Sections
}
