package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"law_flow_forms/config"
	"law_flow_forms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDocumentIntake_Check(t *testing.T) {
	intake := NewDocumentIntake(nil, nil)
	slot := &models.FormRequiredDocument{AcceptedFormats: "pdf,jpeg", MaxFileSize: 2048}

	t.Run("Valid PDF", func(t *testing.T) {
		format, err := intake.Check(nil, "report.PDF", "application/pdf", 100)
		assert.NoError(t, err)
		assert.Equal(t, "pdf", format)
	})

	t.Run("Format from content type", func(t *testing.T) {
		format, err := intake.Check(nil, "scan", "image/png", 100)
		assert.NoError(t, err)
		assert.Equal(t, "png", format)
	})

	t.Run("jpg matches jpeg", func(t *testing.T) {
		format, err := intake.Check(slot, "photo.jpg", "image/jpeg", 100)
		assert.NoError(t, err)
		assert.Equal(t, "jpg", format)
	})

	t.Run("File too large for default", func(t *testing.T) {
		_, err := intake.Check(nil, "large.pdf", "application/pdf", 11*1024*1024)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Contains(t, AsFormError(err).Message, "10MB")
	})

	t.Run("Slot limit overrides default", func(t *testing.T) {
		_, err := intake.Check(slot, "id.pdf", "application/pdf", 4096)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Contains(t, AsFormError(err).Message, "2.0KB")
	})

	t.Run("Invalid extension", func(t *testing.T) {
		_, err := intake.Check(nil, "script.exe", "application/octet-stream", 100)
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
	})

	t.Run("Slot formats", func(t *testing.T) {
		_, err := intake.Check(slot, "notes.txt", "text/plain", 10)
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
		assert.Contains(t, AsFormError(err).Message, "PDF, JPEG")
	})
}

func TestDocumentIntake_Receive(t *testing.T) {
	intake := NewDocumentIntake(nil, &config.Config{FormMaxUploadBytes: 64, FormAllowedFormats: []string{".PDF", "txt"}})

	t.Run("Reads and hashes", func(t *testing.T) {
		content := []byte("%PDF-1.4 payslip")
		file, err := intake.Receive(nil, "dir/payslip.pdf", "", 0, bytes.NewReader(content))
		require.NoError(t, err)

		sum := sha256.Sum256(content)
		assert.Equal(t, hex.EncodeToString(sum[:]), file.ContentHash)
		assert.Equal(t, "payslip.pdf", file.OriginalName)
		assert.Equal(t, "application/pdf", file.ContentType)
		assert.Equal(t, int64(len(content)), file.Size)

		body, err := io.ReadAll(file.Reader())
		require.NoError(t, err)
		assert.Equal(t, content, body)
	})

	t.Run("Actual bytes over the limit", func(t *testing.T) {
		_, err := intake.Receive(nil, "big.txt", "text/plain", 1, strings.NewReader(strings.Repeat("x", 65)))
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
	})

	t.Run("Empty file", func(t *testing.T) {
		_, err := intake.Receive(nil, "empty.txt", "text/plain", 0, strings.NewReader(""))
		fe := AsFormError(err)
		require.NotNil(t, fe)
		assert.Equal(t, CodeValidation, fe.Code)
	})

	t.Run("Configured formats replace defaults", func(t *testing.T) {
		_, err := intake.Receive(nil, "photo.png", "image/png", 3, strings.NewReader("png"))
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
	})
}

func TestDocumentIntake_Store(t *testing.T) {
	storage := new(MockStorageProvider)
	intake := NewDocumentIntake(storage, nil)

	file, err := intake.Receive(nil, "letter.txt", "text/plain", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	storage.On("UploadReader", mock.Anything, mock.Anything, "firms/f/letter.txt", "text/plain", int64(5)).
		Return(&StorageResult{Key: "firms/f/letter.txt", FileName: "letter.txt", FileSize: 5, MimeType: "text/plain"}, nil).Once()

	result, err := intake.Store(context.Background(), "firms/f/letter.txt", file)
	require.NoError(t, err)
	assert.Equal(t, "firms/f/letter.txt", result.Key)
	storage.AssertExpectations(t)

	storage.On("UploadReader", mock.Anything, mock.Anything, "firms/f/fail.txt", "text/plain", int64(5)).
		Return(nil, assert.AnError).Once()
	_, err = intake.Store(context.Background(), "firms/f/fail.txt", file)
	assert.Equal(t, CodeInternal, AsFormError(err).Code)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5KB", formatBytes(1536))
	assert.Equal(t, "10MB", formatBytes(10*1024*1024))
}
