// Package dataurl decodes inline-encoded images ("data:image/jpeg;base64,...")
// back into raw bytes for upload.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Image is a decoded inline image.
type Image struct {
	Bytes     []byte
	MimeType  string
	Extension string
}

// mime subtype -> file extension for the formats the capture flow produces.
var extensions = map[string]string{
	"jpeg": "jpg",
	"jpg":  "jpg",
	"png":  "png",
	"webp": "webp",
	"gif":  "gif",
}

// Decode parses a data URL into raw bytes plus mime/extension. A bare
// base64 string (no "data:" header) is accepted and treated as JPEG,
// matching what the backend does with legacy payloads.
func Decode(raw string) (*Image, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty image data")
	}

	mimeType := "image/jpeg"
	encoded := raw

	if strings.HasPrefix(raw, "data:") {
		header, rest, found := strings.Cut(raw, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URL: missing comma separator")
		}
		encoded = rest

		header = strings.TrimPrefix(header, "data:")
		header = strings.TrimSuffix(header, ";base64")
		if header != "" {
			mimeType = header
		}
	} else if idx := strings.Index(raw, ","); idx >= 0 {
		// Prefixed but not a data: URL; keep everything after the comma.
		encoded = raw[idx+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("empty image after decoding")
	}

	return &Image{
		Bytes:     decoded,
		MimeType:  mimeType,
		Extension: extensionFor(mimeType),
	}, nil
}

func extensionFor(mimeType string) string {
	subtype := mimeType
	if idx := strings.Index(mimeType, "/"); idx >= 0 {
		subtype = mimeType[idx+1:]
	}
	if ext, ok := extensions[strings.ToLower(subtype)]; ok {
		return ext
	}
	return "jpg"
}
