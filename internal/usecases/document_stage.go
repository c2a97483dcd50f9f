package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
)

// DefaultMaxDocumentBytes caps each uploaded document.
const DefaultMaxDocumentBytes int64 = 5 << 20

var documentExtensions = map[string]string{
	"application/pdf": "pdf",
	"image/png":       "png",
	"image/jpeg":      "jpg",
}

// DocumentStage validates and stores the identity and address proofs.
type DocumentStage struct {
	storage  BlobStorage
	maxBytes int64
	now      func() time.Time
}

// NewDocumentStage creates a document stage. A non-positive maxBytes uses the default cap.
func NewDocumentStage(storage BlobStorage, maxBytes int64) *DocumentStage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}
	return &DocumentStage{storage: storage, maxBytes: maxBytes, now: time.Now}
}

// Store uploads one slot and returns its public url. Failures only concern that slot.
func (s *DocumentStage) Store(ctx context.Context, identityID uuid.UUID, kind entities.DocumentKind, data []byte) (string, error) {
	if !kind.Valid() {
		return "", domainerrors.Invalid("kind", "must be id or address")
	}
	slot := string(kind)
	if len(data) == 0 {
		return "", domainerrors.Invalid(slot, "file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return "", domainerrors.Invalid(slot, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	contentType, ext := sniffDocument(data)
	if ext == "" {
		return "", domainerrors.Invalid(slot, "only pdf, png and jpeg files are accepted")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := fmt.Sprintf("documents/%s/%s-%d.%s", identityID, kind, s.now().Unix(), ext)
	url, err := s.storage.Store(ctx, path, contentType, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &domainerrors.UploadError{Slot: slot, Err: err}
	}
	return url, nil
}

func sniffDocument(data []byte) (contentType, ext string) {
	detected := mimetype.Detect(data)
	for ct, e := range documentExtensions {
		if detected.Is(ct) {
			return ct, e
		}
	}
	return detected.String(), ""
}
