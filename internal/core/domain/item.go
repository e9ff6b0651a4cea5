package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Size limits for saved content.
const (
	// MaxFileSize is the largest accepted upload (10 MiB).
	MaxFileSize = 10 << 20

	// MaxMessageLength is the longest accepted message text.
	MaxMessageLength = 100_000

	// MaxExtractedPreview caps the extracted-text preview stored on
	// file items.
	MaxExtractedPreview = 5_000
)

// ItemKind distinguishes the two content types a space holds.
type ItemKind string

const (
	// KindMessage is a plain-text message.
	KindMessage ItemKind = "message"

	// KindFile is an uploaded file.
	KindFile ItemKind = "file"
)

// Valid reports whether the kind is a known value.
func (k ItemKind) Valid() bool {
	return k == KindMessage || k == KindFile
}

// ItemStatus tracks an item through the ingestion pipeline.
type ItemStatus string

const (
	// StatusPending means the item is inserted but not yet indexed.
	StatusPending ItemStatus = "pending"

	// StatusReady means the item is extracted, embedded and indexed.
	StatusReady ItemStatus = "ready"

	// StatusFailed means ingestion failed on the input itself.
	StatusFailed ItemStatus = "failed"
)

// MIMEFamily is the closed set of content families the extractor
// dispatches on.
type MIMEFamily string

const (
	FamilyPlain   MIMEFamily = "plain"
	FamilyPDF     MIMEFamily = "pdf"
	FamilyDocx    MIMEFamily = "docx"
	FamilyImage   MIMEFamily = "image"
	FamilyUnknown MIMEFamily = "unknown"
)

// FamilyForExtension maps a file extension (without dot, lower case)
// to its MIME family. Unrecognised extensions map to FamilyUnknown.
func FamilyForExtension(ext string) MIMEFamily {
	switch strings.ToLower(ext) {
	case "txt", "text":
		return FamilyPlain
	case "pdf":
		return FamilyPDF
	case "docx":
		return FamilyDocx
	case "png", "jpg", "jpeg":
		return FamilyImage
	default:
		return FamilyUnknown
	}
}

// AllowedExtensions lists the upload extensions accepted by save_file.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"docx": {},
	"txt":  {},
}

// FileInfo holds the known per-file fields of a file item.
type FileInfo struct {
	// OriginalName is the file name as uploaded.
	OriginalName string

	// SizeBytes is the upload size.
	SizeBytes int64

	// Family is the MIME family the file was ingested as.
	Family MIMEFamily

	// OCR is true when the text was produced by OCR.
	OCR bool

	// StoragePath is the opaque path of the canonical bytes.
	StoragePath string

	// ExtractedText is a preview of the extracted text, capped at
	// MaxExtractedPreview characters.
	ExtractedText string
}

// Item is a single unit of content within a space.
type Item struct {
	// ID is the unique identifier for the item.
	ID string

	// SpaceID is the containing space.
	SpaceID string

	// Kind is message or file.
	Kind ItemKind

	// Content is the message text for messages, or the stored file
	// name for files.
	Content string

	// Notes is optional user-provided annotation.
	Notes string

	// Status tracks ingestion progress.
	Status ItemStatus

	// FailureReason records why ingestion failed, when Status is failed.
	FailureReason string

	// VectorRef is the vector index internal id. Nil until indexed.
	VectorRef *uint64

	// File holds file-specific fields. Nil for messages.
	File *FileInfo

	// Overflow carries forward-compatible metadata not covered by the
	// typed fields.
	Overflow map[string]string

	// CreatedAt is when the item was saved.
	CreatedAt time.Time
}

// ValidateMessage checks message text against domain constraints.
func ValidateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, MaxMessageLength)
	}
	return nil
}

// EmbeddingText composes the text that is embedded for the item:
// the content (or extracted text for files), with notes appended.
func (i *Item) EmbeddingText() string {
	text := i.Content
	if i.Kind == KindFile && i.File != nil {
		if i.File.ExtractedText != "" {
			text = i.File.ExtractedText
		} else if i.File.OriginalName != "" {
			text = i.File.OriginalName
		}
	}
	if i.Notes != "" {
		text += " | Notes: " + i.Notes
	}
	return text
}

// DisplayText is the text context assembly draws snippets from: the
// message body for messages, the extracted text for files.
func (i *Item) DisplayText() string {
	if i.Kind == KindFile && i.File != nil {
		return i.File.ExtractedText
	}
	return i.Content
}
