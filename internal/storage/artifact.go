package storage

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Kind selects how an artifact is stored and served.
type Kind string

const (
	// KindRaw is an opaque binary such as the uploaded document.
	KindRaw Kind = "raw"
	// KindImage is a rendered, browser-viewable document such as a PDF.
	KindImage Kind = "image"
)

// Artifact is the result of a successful upload.
type Artifact struct {
	Key       string
	URL       string
	SecureURL string
}

func objectKey(folder, key string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return key
	}
	return path.Join(folder, key)
}

func contentTypeFor(kind Kind, data []byte) string {
	if kind == KindRaw {
		return "application/octet-stream"
	}
	return http.DetectContentType(data)
}

// publicURLs returns the plain and TLS URLs of an object served at
// host/bucket/key.
func publicURLs(host, bucket, key string) (string, string) {
	p := "/" + path.Join(bucket, key)
	plain := url.URL{Scheme: "http", Host: host, Path: p}
	secure := url.URL{Scheme: "https", Host: host, Path: p}
	return plain.String(), secure.String()
}
