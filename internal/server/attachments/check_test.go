package attachments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		up     Upload
		max    int64
		want   string
	}{
		{"photo ok", PhotoPrefix, Upload{ContentType: "image/png", Data: pngHeader}, 0, ""},
		{"photo jpg alias", PhotoPrefix, Upload{ContentType: "image/jpg", Data: []byte("x")}, 0, ""},
		{"photo sniffed", PhotoPrefix, Upload{Data: pngHeader}, 0, ""},
		{"photo wrong type", PhotoPrefix, Upload{ContentType: "audio/mp3", Data: []byte("x")}, 0, "must be an image"},
		{"audio ok", AudioPrefix, Upload{ContentType: "audio/mp3", Data: []byte("ID3")}, 0, ""},
		{"audio with params", AudioPrefix, Upload{ContentType: "audio/ogg; codecs=opus", Data: []byte("x")}, 0, ""},
		{"audio wrong type", AudioPrefix, Upload{ContentType: "text/plain", Data: []byte("x")}, 0, "must be an audio file"},
		{"empty", PhotoPrefix, Upload{ContentType: "image/png"}, 0, "is empty"},
		{"too large", PhotoPrefix, Upload{ContentType: "image/png", Data: []byte("12345")}, 4, "is too large (maximum is 4 bytes)"},
		{"bad content type", PhotoPrefix, Upload{ContentType: "image/", Data: []byte("x")}, 0, "has an invalid content type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.prefix, tt.up, tt.max))
		})
	}
}
