package enquiries

import (
	"fmt"

	"github.com/dmitrijs2005/enquirykeeper/internal/common"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

// PersistError reports a failed commit. Attempted is the draft that was not
// saved, so callers can re-present what was submitted; stored state is
// unchanged. It matches common.ErrorPersist via errors.Is.
type PersistError struct {
	Attempted *models.Enquiry
	Err       error
}

func (e *PersistError) Error() string {
	id := ""
	if e.Attempted != nil {
		id = e.Attempted.ID
	}
	return fmt.Sprintf("%s: enquiry %s: %v", common.ErrorPersist, id, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{common.ErrorPersist, e.Err}
}
