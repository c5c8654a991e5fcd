package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MaxUploadBytes  = 10 * 1024 * 1024

	DefaultFilename = "unknown.docx"
)

// Book is the job record kept for one submitted document.
type Book struct {
	ID                string     `json:"id"`
	OriginalFilename  string     `json:"originalFilename"`
	OriginalURL       string     `json:"originalUrl,omitempty"`
	OriginalSecureURL string     `json:"originalSecureUrl,omitempty"`
	PDFURL            string     `json:"pdfUrl,omitempty"`
	PDFSecureURL      string     `json:"pdfSecureUrl,omitempty"`
	ProcessedAt       *time.Time `json:"processedAt,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// BookUpdate is a partial update. Nil fields are left unchanged; an
// ErrorMessage pointing at "" clears the stored message.
type BookUpdate struct {
	OriginalURL       *string
	OriginalSecureURL *string
	PDFURL            *string
	PDFSecureURL      *string
	ProcessedAt       *time.Time
	ErrorMessage      *string
}

// Apply copies the set fields of u onto b.
func (u BookUpdate) Apply(b *Book) {
	if u.OriginalURL != nil {
		b.OriginalURL = *u.OriginalURL
	}
	if u.OriginalSecureURL != nil {
		b.OriginalSecureURL = *u.OriginalSecureURL
	}
	if u.PDFURL != nil {
		b.PDFURL = *u.PDFURL
	}
	if u.PDFSecureURL != nil {
		b.PDFSecureURL = *u.PDFSecureURL
	}
	if u.ProcessedAt != nil {
		t := *u.ProcessedAt
		b.ProcessedAt = &t
	}
	if u.ErrorMessage != nil {
		b.ErrorMessage = *u.ErrorMessage
	}
}

// Submission is one upload as received by the HTTP surface.
type Submission struct {
	Present      bool
	Filename     string
	ContentType  string
	Size         int64
	Data         []byte
	TemplateName string
}

// Validation failures, in the order Validate checks them.
var (
	ErrMissingFile  = fmt.Errorf("%w: file field 'file' is missing or invalid", ErrValidation)
	ErrInvalidType  = fmt.Errorf("%w: invalid file type, only .docx files are allowed", ErrValidation)
	ErrFileTooLarge = fmt.Errorf("%w: file size exceeds the %dMB limit", ErrValidation, MaxUploadBytes/(1024*1024))
	ErrEmptyFile    = fmt.Errorf("%w: uploaded file is empty", ErrValidation)
)

// ErrUnreadableFile is raised by the HTTP surface when the file part was
// present but could not be read.
var ErrUnreadableFile = fmt.Errorf("%w: uploaded file could not be read", ErrValidation)

func (s Submission) Validate() error {
	switch {
	case !s.Present:
		return ErrMissingFile
	case s.ContentType != DocxContentType:
		return ErrInvalidType
	case s.Size > MaxUploadBytes:
		return ErrFileTooLarge
	case len(s.Data) == 0:
		return ErrEmptyFile
	}
	return nil
}

// DisplayName returns the filename used on the record.
func (s Submission) DisplayName() string {
	name := strings.TrimSpace(s.Filename)
	if name == "" {
		return DefaultFilename
	}
	return filepath.Base(name)
}

// Title derives a document title from the filename stem.
func (s Submission) Title() string {
	name := s.DisplayName()
	return strings.TrimSuffix(name, filepath.Ext(name))
}
