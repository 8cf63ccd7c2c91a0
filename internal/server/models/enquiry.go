package models

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// Criteria is the dynamic key/value payload of an enquiry. Values are either
// strings or nested structures ([]any, map[string]any) for multi-valued fields.
type Criteria map[string]any

// Clone copies the map and any nested slices/maps one level deep per value.
func (c Criteria) Clone() Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case []any:
		cp := make([]any, len(value))
		for i, item := range value {
			cp[i] = cloneValue(item)
		}
		return cp
	case []string:
		return slices.Clone(value)
	case map[string]any:
		cp := make(map[string]any, len(value))
		for k, item := range value {
			cp[k] = cloneValue(item)
		}
		return cp
	default:
		return v
	}
}

// Enquiry is the dynamic record managed by the record engine.
//
// PhotoKeys is an ordered sequence; the first key is the primary photo.
// RecordedAudio is empty when no audio is attached.
type Enquiry struct {
	ID            string    `json:"id"`
	Criteria      Criteria  `json:"criteria"`
	PhotoKeys     []string  `json:"photo_keys"`
	RecordedAudio string    `json:"recorded_audio,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy; drafts are staged on clones so a failed commit
// never leaks into the caller's value.
func (e *Enquiry) Clone() *Enquiry {
	if e == nil {
		return nil
	}
	out := *e
	out.Criteria = e.Criteria.Clone()
	out.PhotoKeys = slices.Clone(e.PhotoKeys)
	if out.PhotoKeys == nil {
		out.PhotoKeys = []string{}
	}
	return &out
}

// PrimaryPhotoKey returns the first photo key, if any.
func (e *Enquiry) PrimaryPhotoKey() (string, bool) {
	if len(e.PhotoKeys) == 0 {
		return "", false
	}
	return e.PhotoKeys[0], true
}

// HasAudio reports whether an audio attachment is bound.
func (e *Enquiry) HasAudio() bool {
	return e.RecordedAudio != ""
}

// SameContent reports whether two enquiries carry identical criteria,
// attachments and provenance. Timestamps are ignored.
func (e *Enquiry) SameContent(other *Enquiry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID &&
		e.CreatedBy == other.CreatedBy &&
		e.RecordedAudio == other.RecordedAudio &&
		slices.Equal(e.PhotoKeys, other.PhotoKeys) &&
		maps.EqualFunc(e.Criteria, other.Criteria, func(a, b any) bool { return reflect.DeepEqual(a, b) })
}
