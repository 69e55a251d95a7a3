package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64MaybeDataURL decodes base64. For a data: URI the MIME type from
// the prefix is returned as well.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// standard alphabet first, URL-safe as a fallback
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}

// PickMIME prefers an explicit type, then the data: URI hint, then sniffing.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}
