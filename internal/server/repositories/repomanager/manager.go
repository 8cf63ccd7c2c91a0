package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/enquirykeeper/internal/dbx"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/enquiries"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/repositories/forms"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Enquiries(db dbx.DBTX) enquiries.Repository
	Forms(db dbx.DBTX) forms.Repository
}
