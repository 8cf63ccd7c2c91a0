package attachments

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Check returns a validation message for an upload of the given kind, or ""
// when it is acceptable. An empty content type is sniffed from the data.
// maxSize <= 0 disables the size limit.
func Check(prefix string, up Upload, maxSize int64) string {
	if len(up.Data) == 0 {
		return "is empty"
	}
	if maxSize > 0 && int64(len(up.Data)) > maxSize {
		return fmt.Sprintf("is too large (maximum is %d bytes)", maxSize)
	}

	ct := up.ContentType
	if ct == "" {
		ct = http.DetectContentType(up.Data)
	}
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "has an invalid content type"
	}

	switch prefix {
	case PhotoPrefix:
		if !strings.HasPrefix(media, "image/") {
			return "must be an image"
		}
	case AudioPrefix:
		if !strings.HasPrefix(media, "audio/") {
			return "must be an audio file"
		}
	}
	return ""
}
