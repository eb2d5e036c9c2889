package models

import "time"

// DocumentKind names a generated PDF type.
type DocumentKind string

const (
	DocumentTranscript  DocumentKind = "transcript"
	DocumentCertificate DocumentKind = "certificate"
	DocumentStatement   DocumentKind = "statement"
)

// Valid returns true when the kind is a supported document.
func (k DocumentKind) Valid() bool {
	return k == DocumentTranscript || k == DocumentCertificate || k == DocumentStatement
}

// GeneratedDocument is a rendered PDF returned to the caller.
type GeneratedDocument struct {
	Kind          DocumentKind `json:"kind"`
	Filename      string       `json:"filename"`
	ContentType   string       `json:"content_type"`
	ContentBase64 string       `json:"content_base64,omitempty"`
	StorageKey    string       `json:"storage_key,omitempty"`
	DownloadURL   string       `json:"download_url,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}
