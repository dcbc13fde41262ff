// Package imagedata decodes inline images and picks their MIME type.
package imagedata

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Supported lists the image types accepted by both vision providers.
var Supported = map[string]bool{ //nolint:gochecknoglobals // read-only lookup
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Decode accepts raw base64 (standard or URL-safe) or a data: URI, and
// returns the bytes plus the MIME type named in the URI prefix, if any.
func Decode(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hint string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hint = meta[:semi]
			} else {
				hint = meta
			}
			s = s[idx+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hint, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return b, hint, nil
}

// PickMIME prefers the explicit type, then the data URI hint, then sniffing.
func PickMIME(explicit, hint string, data []byte) string {
	if e := strings.ToLower(strings.TrimSpace(explicit)); e != "" {
		return e
	}
	if h := strings.ToLower(strings.TrimSpace(hint)); h != "" {
		return h
	}
	if len(data) > 0 {
		return strings.SplitN(http.DetectContentType(data), ";", 2)[0]
	}
	return "image/jpeg"
}

// DataURL encodes data as a base64 data URI.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Check validates size and type.
func Check(data []byte, mime string, maxBytes int) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrImageTooLarge, len(data), maxBytes)
	}
	if !Supported[mime] {
		return fmt.Errorf("%w: unsupported type %s", ErrInvalidImage, mime)
	}
	return nil
}
