package dataurl

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDecodeDataURL(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(img.Bytes, raw) {
		t.Errorf("decoded bytes mismatch: got %v, want %v", img.Bytes, raw)
	}
	if img.MimeType != "image/png" {
		t.Errorf("mime type = %q, want image/png", img.MimeType)
	}
	if img.Extension != "png" {
		t.Errorf("extension = %q, want png", img.Extension)
	}
}

func TestDecodeBareBase64DefaultsToJPEG(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff}
	img, err := Decode(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("mime type = %q, want image/jpeg", img.MimeType)
	}
	if img.Extension != "jpg" {
		t.Errorf("extension = %q, want jpg", img.Extension)
	}
}

func TestDecodeJPEGExtension(t *testing.T) {
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	img, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Extension != "jpg" {
		t.Errorf("extension = %q, want jpg", img.Extension)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing comma", "data:image/png;base64"},
		{"invalid base64", "data:image/png;base64,not$$base64!!"},
		{"empty payload", "data:image/png;base64,"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.in); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tc.in)
			}
		})
	}
}

func TestDecodeUnknownSubtypeFallsBack(t *testing.T) {
	encoded := "data:image/tiff;base64," + base64.StdEncoding.EncodeToString([]byte{1})
	img, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Extension != "jpg" {
		t.Errorf("extension = %q, want jpg fallback", img.Extension)
	}
}
