// Package models defines server-side data models: the declarative form
// schema (Form, FormSection, Field) and the dynamic Enquiry record.
package models

import "slices"

// EnquiryFormName is the system-wide name the enquiry schema is registered
// under. It is not configurable per request.
const EnquiryFormName = "Enquiries"

// FieldKind says how a submitted value is interpreted.
type FieldKind string

const (
	FieldKindText       FieldKind = "text_field"
	FieldKindTextArea   FieldKind = "textarea"
	FieldKindNumeric    FieldKind = "numeric_field"
	FieldKindDate       FieldKind = "date_field"
	FieldKindSelectBox  FieldKind = "select_box"
	FieldKindRadio      FieldKind = "radio_button"
	FieldKindCheckBoxes FieldKind = "check_boxes"
	FieldKindPhoto      FieldKind = "photo_upload_box"
	FieldKindAudio      FieldKind = "audio_upload_box"
)

// Reserved submission keys routed to the attachment store instead of criteria.
const (
	PhotoFieldName = "photo"
	AudioFieldName = "audio"
)

// IsAttachment reports whether values of this kind are binary uploads.
func (k FieldKind) IsAttachment() bool {
	return k == FieldKindPhoto || k == FieldKindAudio
}

// Field is a named, typed slot declared by a FormSection.
type Field struct {
	Name      string    `json:"name"`
	Kind      FieldKind `json:"type"`
	Required  bool      `json:"required,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Options   []string  `json:"option_strings,omitempty"`
	Indexable bool      `json:"indexable,omitempty"`
}

// FormSection is an ordered group of fields within a form.
type FormSection struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Order  int     `json:"order"`
	Fields []Field `json:"fields"`
}

// Form groups the sections used to interpret one kind of record.
type Form struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Sections []FormSection `json:"sections"`
}

// Clone returns a deep copy so callers never share slices with the original.
func (s FormSection) Clone() FormSection {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Options = slices.Clone(f.Options)
		out.Fields[i] = f
	}
	return out
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	out := f
	out.Sections = make([]FormSection, len(f.Sections))
	for i, s := range f.Sections {
		out.Sections[i] = s.Clone()
	}
	return out
}

// FieldIndex flattens sections into a name -> Field lookup. When a name is
// declared twice across sections the first declaration wins.
func FieldIndex(sections []FormSection) map[string]Field {
	idx := make(map[string]Field)
	for _, s := range sections {
		for _, f := range s.Fields {
			if _, ok := idx[f.Name]; !ok {
				idx[f.Name] = f
			}
		}
	}
	return idx
}

// IndexableFieldNames lists fields flagged for search, in declaration order.
func IndexableFieldNames(sections []FormSection) []string {
	var names []string
	for _, s := range sections {
		for _, f := range s.Fields {
			if f.Indexable {
				names = append(names, f.Name)
			}
		}
	}
	return names
}
