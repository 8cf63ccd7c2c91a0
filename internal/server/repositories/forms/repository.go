package forms

import (
	"context"

	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// Repository reads declared forms. It satisfies schema.Source.
type Repository interface {
	ListForms(ctx context.Context) ([]models.Form, error)
}
