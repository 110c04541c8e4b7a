package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"law_flow_forms/config"
	"law_flow_forms/models"
	"law_flow_forms/services/formengine"
)

const (
	DefaultMaxUploadSize = 10 * 1024 * 1024 // 10MB
)

// DefaultAllowedFormats applies to uploads without a slot, or to slots that declare no formats
var DefaultAllowedFormats = []string{"pdf", "doc", "docx", "txt", "jpg", "jpeg", "png"}

// ReceivedFile is an upload that passed the intake checks and has been read and hashed
type ReceivedFile struct {
	OriginalName string
	Format       string
	ContentType  string
	Size         int64
	ContentHash  string // hex SHA-256
	content      []byte
}

// Reader returns the file bytes
func (f *ReceivedFile) Reader() io.Reader {
	return bytes.NewReader(f.content)
}

// DocumentIntake enforces size and format limits on uploads and moves accepted bytes to storage
type DocumentIntake struct {
	Storage        StorageProvider
	MaxFileSize    int64
	AllowedFormats []string
}

// NewDocumentIntake creates an intake with the configured fallback limits
func NewDocumentIntake(storage StorageProvider, cfg *config.Config) *DocumentIntake {
	intake := &DocumentIntake{
		Storage:        storage,
		MaxFileSize:    DefaultMaxUploadSize,
		AllowedFormats: DefaultAllowedFormats,
	}
	if cfg != nil {
		if cfg.FormMaxUploadBytes > 0 {
			intake.MaxFileSize = cfg.FormMaxUploadBytes
		}
		if len(cfg.FormAllowedFormats) > 0 {
			intake.AllowedFormats = normalizeFormats(cfg.FormAllowedFormats)
		}
	}
	return intake
}

// Limits returns the size cap and accepted formats for a slot, nil meaning no slot
func (d *DocumentIntake) Limits(slot *models.FormRequiredDocument) (int64, []string) {
	maxSize := d.MaxFileSize
	formats := d.AllowedFormats
	if slot != nil {
		if slot.MaxFileSize > 0 {
			maxSize = slot.MaxFileSize
		}
		if f := slot.Formats(); len(f) > 0 {
			formats = f
		}
	}
	return maxSize, formats
}

// Check validates the declared name, content type and size before any bytes are read
func (d *DocumentIntake) Check(slot *models.FormRequiredDocument, fileName, contentType string, size int64) (string, error) {
	maxSize, formats := d.Limits(slot)
	if size > maxSize {
		return "", withMessage(ErrPayloadTooLarge, fmt.Sprintf("the file exceeds the maximum size of %s", formatBytes(maxSize)))
	}

	format := fileFormat(fileName, contentType)
	for _, allowed := range formats {
		if format != "" && (format == allowed || (format == "jpg" && allowed == "jpeg") || (format == "jpeg" && allowed == "jpg")) {
			return format, nil
		}
	}
	return "", withMessage(ErrUnsupportedFileType, fmt.Sprintf("this file type is not accepted. Accepted formats: %s", strings.ToUpper(strings.Join(formats, ", "))))
}

// Receive checks and reads an upload. The size limit is enforced on the actual bytes,
// whatever size the client declared.
func (d *DocumentIntake) Receive(slot *models.FormRequiredDocument, fileName, contentType string, size int64, content io.Reader) (*ReceivedFile, error) {
	format, err := d.Check(slot, fileName, contentType, size)
	if err != nil {
		return nil, err
	}

	maxSize, _ := d.Limits(slot)
	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("failed to read uploaded file: %w", err))
	}
	if int64(len(data)) > maxSize {
		return nil, withMessage(ErrPayloadTooLarge, fmt.Sprintf("the file exceeds the maximum size of %s", formatBytes(maxSize)))
	}
	if len(data) == 0 {
		return nil, NewValidationError([]formengine.Violation{{Field: "file", Rule: "required", Message: "the file is empty"}})
	}

	sum := sha256.Sum256(data)

	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeForExtension(format)
		if ct == "application/octet-stream" {
			ct = http.DetectContentType(data)
		}
	}

	return &ReceivedFile{
		OriginalName: filepath.Base(fileName),
		Format:       format,
		ContentType:  ct,
		Size:         int64(len(data)),
		ContentHash:  hex.EncodeToString(sum[:]),
		content:      data,
	}, nil
}

// Store writes an accepted file to the blob store
func (d *DocumentIntake) Store(ctx context.Context, key string, file *ReceivedFile) (*StorageResult, error) {
	result, err := d.Storage.UploadReader(ctx, file.Reader(), key, file.ContentType, file.Size)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("failed to store document: %w", err))
	}
	return result, nil
}

// fileFormat derives the lowercase format of an upload from its extension, or its content type
func fileFormat(fileName, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext != "" {
		return ext
	}
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "application/pdf":
		return "pdf"
	case "application/msword":
		return "doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "text/plain":
		return "txt"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	}
	return ""
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	if n >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}
