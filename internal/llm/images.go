package llm

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Image limits for a single analysis request.
const (
	MaxImages     = 4
	MaxImageBytes = 5 << 20
)

// Image validation errors.
var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
	ErrTooManyImages    = errors.New("too many images")
	ErrInvalidImageData = errors.New("invalid image data")
)

// InlineImage is an image as the browser sends it: base64 data plus its MIME
// type.
type InlineImage struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// DecodeImages validates and decodes inline images. Duplicate images (same
// bytes) are dropped before the count limit is checked.
func DecodeImages(in []InlineImage) ([]ImagePart, error) {
	out := make([]ImagePart, 0, len(in))
	for i, img := range in {
		mime := strings.ToLower(strings.TrimSpace(img.MimeType))
		if !strings.HasPrefix(mime, "image/") {
			return nil, fmt.Errorf("image %d: %w: %q", i, ErrUnsupportedImage, img.MimeType)
		}

		data, err := decodeBase64(img.Data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w: %v", i, ErrInvalidImageData, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image %d: %w: empty", i, ErrInvalidImageData)
		}
		if len(data) > MaxImageBytes {
			return nil, fmt.Errorf("image %d: %w: %d bytes (max %d)", i, ErrImageTooLarge, len(data), MaxImageBytes)
		}

		if containsImage(out, data) {
			continue
		}
		out = append(out, ImagePart{MimeType: mime, Data: data})
	}

	if len(out) > MaxImages {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyImages, len(out), MaxImages)
	}
	return out, nil
}

// decodeBase64 accepts raw base64 or a data URL.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func containsImage(parts []ImagePart, data []byte) bool {
	for _, p := range parts {
		if bytes.Equal(p.Data, data) {
			return true
		}
	}
	return false
}
