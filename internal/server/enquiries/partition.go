package enquiries

import "github.com/dmitrijs2005/enquirykeeper/internal/server/models"

// Partition returns a copy of submitted without attachment entries: the
// reserved "photo" and "audio" keys and any field the schema declares with a
// photo or audio kind. The result is never nil.
func Partition(sections []models.FormSection, submitted models.Criteria) models.Criteria {
	idx := models.FieldIndex(sections)
	out := make(models.Criteria, len(submitted))
	for k, v := range submitted {
		if k == models.PhotoFieldName || k == models.AudioFieldName {
			continue
		}
		if f, ok := idx[k]; ok && f.Kind.IsAttachment() {
			continue
		}
		out[k] = v
	}
	return out.Clone()
}
