package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrijs2005/enquirykeeper/internal/server/attachments"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/models"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/schema"
	"github.com/dmitrijs2005/enquirykeeper/internal/server/services"
)

const formRoot = "enquiry"

// parseSubmission reads an enquiry submission from a JSON, urlencoded or
// multipart body. Form keys follow the enquiry[name], enquiry[name][] and
// enquiry[name][index] conventions. Photo and audio files are taken from
// enquiry[photo] / enquiry[photo][index] and enquiry[audio].
func parseSubmission(r *http.Request, maxMemory int64) (services.Submission, error) {
	sub := services.Submission{Criteria: models.Criteria{}}
	if r.Body == nil || r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
		return sub, nil
	}

	media, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch media {
	case "application/json":
		var body struct {
			Enquiry models.Criteria `json:"enquiry"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			return sub, fmt.Errorf("decode json body: %w", err)
		}
		if body.Enquiry != nil {
			sub.Criteria = body.Enquiry
		}
		return sub, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return sub, fmt.Errorf("parse multipart body: %w", err)
		}
		sub.Criteria = criteriaFromValues(r.MultipartForm.Value)
		files, err := uploadsFromFiles(r.MultipartForm.File)
		if err != nil {
			return sub, err
		}
		sub.Photos = files.photos
		sub.Audio = files.audio
		return sub, nil

	default:
		if err := r.ParseForm(); err != nil {
			return sub, fmt.Errorf("parse form body: %w", err)
		}
		sub.Criteria = criteriaFromValues(r.PostForm)
		return sub, nil
	}
}

type formKey struct {
	name  string
	index string
	list  bool
}

// splitKey parses "enquiry[name]", "enquiry[name][]" and
// "enquiry[name][index]". Keys outside the enquiry root are rejected.
func splitKey(key string) (formKey, bool) {
	rest, found := strings.CutPrefix(key, formRoot+"[")
	if !found {
		return formKey{}, false
	}
	name, rest, found := strings.Cut(rest, "]")
	if !found || name == "" {
		return formKey{}, false
	}
	if rest == "" {
		return formKey{name: name}, true
	}
	inner, found := strings.CutPrefix(rest, "[")
	if !found || !strings.HasSuffix(inner, "]") {
		return formKey{}, false
	}
	index := strings.TrimSuffix(inner, "]")
	return formKey{name: name, index: index, list: index == ""}, true
}

func criteriaFromValues(values map[string][]string) models.Criteria {
	criteria := models.Criteria{}
	indexed := map[string]map[string]any{}

	for key, vals := range values {
		k, ok := splitKey(key)
		if !ok || len(vals) == 0 {
			continue
		}
		switch {
		case k.list || k.index == "" && len(vals) > 1:
			criteria[k.name] = toAny(vals)
		case k.index == "":
			criteria[k.name] = vals[0]
		default:
			m, ok := indexed[k.name]
			if !ok {
				m = map[string]any{}
				indexed[k.name] = m
			}
			m[k.index] = vals[len(vals)-1]
		}
	}

	for name, m := range indexed {
		if _, taken := criteria[name]; !taken {
			criteria[name] = m
		}
	}
	return criteria
}

func toAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

type uploads struct {
	photos []attachments.Upload
	audio  *attachments.Upload
}

func uploadsFromFiles(files map[string][]*multipart.FileHeader) (uploads, error) {
	var (
		out     uploads
		indexes []string
		byIndex = map[string][]*multipart.FileHeader{}
	)

	for key, headers := range files {
		k, ok := splitKey(key)
		if !ok || len(headers) == 0 {
			continue
		}
		switch k.name {
		case models.PhotoFieldName:
			if _, seen := byIndex[k.index]; !seen {
				indexes = append(indexes, k.index)
			}
			byIndex[k.index] = append(byIndex[k.index], headers...)
		case models.AudioFieldName:
			up, err := readUpload(headers[0])
			if err != nil {
				return out, err
			}
			out.audio = &up
		}
	}

	slices.SortFunc(indexes, schema.CompareIndexKeys)
	for _, idx := range indexes {
		for _, h := range byIndex[idx] {
			up, err := readUpload(h)
			if err != nil {
				return out, err
			}
			out.photos = append(out.photos, up)
		}
	}
	return out, nil
}

func readUpload(h *multipart.FileHeader) (attachments.Upload, error) {
	f, err := h.Open()
	if err != nil {
		return attachments.Upload{}, fmt.Errorf("open upload %s: %w", h.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return attachments.Upload{}, fmt.Errorf("read upload %s: %w", h.Filename, err)
	}
	return attachments.Upload{
		Filename:    h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
