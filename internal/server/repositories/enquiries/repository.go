package enquiries

import (
	"context"

	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Enquiry, error)
	GetForUpdate(ctx context.Context, id string) (*models.Enquiry, error)
	Insert(ctx context.Context, e *models.Enquiry) error
	Save(ctx context.Context, e *models.Enquiry) error
	Count(ctx context.Context) (int64, error)
}
