// Package forms loads form schemas (forms, ordered sections, ordered fields)
// from PostgreSQL.
package forms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/enquirykeeper/internal/dbx"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListForms returns every form with its sections and fields in declaration
// order. A section with no fields is returned with an empty field list.
func (r *PostgresRepository) ListForms(ctx context.Context) ([]models.Form, error) {
	query := `
		SELECT f.id, f.name, s.id, s.name, s.position,
			ff.name, ff.kind, ff.required, ff.max_length, ff.option_strings, ff.indexable
		FROM forms f
		JOIN form_sections s ON s.form_id = f.id
		LEFT JOIN form_fields ff ON ff.section_id = s.id
		ORDER BY f.name, s.position, ff.position
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select forms: %w", err)
	}
	defer rows.Close()

	var (
		result []models.Form
		form   *models.Form
		sec    *models.FormSection
	)
	for rows.Next() {
		var (
			formID, formName, secID, secName string
			position                         int
			fName, fKind                     sql.NullString
			fRequired, fIndexable            sql.NullBool
			fMaxLength                       sql.NullInt64
			fOptions                         []byte
		)
		if err := rows.Scan(
			&formID, &formName, &secID, &secName, &position,
			&fName, &fKind, &fRequired, &fMaxLength, &fOptions, &fIndexable,
		); err != nil {
			return nil, err
		}

		if form == nil || form.ID != formID {
			result = append(result, models.Form{ID: formID, Name: formName, Sections: []models.FormSection{}})
			form = &result[len(result)-1]
			sec = nil
		}
		if sec == nil || sec.ID != secID {
			form.Sections = append(form.Sections, models.FormSection{ID: secID, Name: secName, Order: position, Fields: []models.Field{}})
			sec = &form.Sections[len(form.Sections)-1]
		}
		if !fName.Valid {
			continue
		}

		field := models.Field{
			Name:      fName.String,
			Kind:      models.FieldKind(fKind.String),
			Required:  fRequired.Bool,
			MaxLength: int(fMaxLength.Int64),
			Indexable: fIndexable.Bool,
		}
		if len(fOptions) > 0 {
			if err := json.Unmarshal(fOptions, &field.Options); err != nil {
				return nil, fmt.Errorf("decode options of %s.%s: %w", secName, field.Name, err)
			}
			if len(field.Options) == 0 {
				field.Options = nil
			}
		}
		sec.Fields = append(sec.Fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
