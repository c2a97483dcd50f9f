package usecases

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
)

// DefaultOrganization heads the application document when none is configured.
const DefaultOrganization = "Associação de Membros"

// SignatureStage turns the drawn signature into the signed application document.
type SignatureStage struct {
	renderer     ApplicationRenderer
	storage      BlobStorage
	organization string
	now          func() time.Time
}

// NewSignatureStage creates a signature stage.
func NewSignatureStage(renderer ApplicationRenderer, storage BlobStorage, organization string) *SignatureStage {
	if organization == "" {
		organization = DefaultOrganization
	}
	return &SignatureStage{renderer: renderer, storage: storage, organization: organization, now: time.Now}
}

// Sign composes and uploads the application document and returns its url.
func (s *SignatureStage) Sign(ctx context.Context, member *entities.MemberProfile, input *entities.SubmitSignatureInput) (string, error) {
	if input == nil {
		return "", domainerrors.Invalid("signature", "is required")
	}
	signature, err := DecodeSignature(input.Signature)
	if err != nil {
		return "", err
	}

	signedAt := s.now()
	doc := entities.ApplicationDocument{
		Organization: s.organization,
		Name:         member.Name,
		DisplayID:    member.DisplayID,
		NationalID:   member.NationalID,
		Email:        member.Email,
		Phone:        member.Phone,
		Profession:   member.Profession,
		BirthDate:    member.BirthDate,
		SignedAt:     signedAt,
		Signature:    signature,
	}
	pdf, err := s.renderer.Render(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("failed to compose application document: %w", err)
	}

	path := fmt.Sprintf("signatures/%s/application-%d.pdf", member.ID, signedAt.Unix())
	url, err := s.storage.Store(ctx, path, "application/pdf", pdf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &domainerrors.UploadError{Slot: "signature", Err: err}
	}
	return url, nil
}

// DecodeSignature accepts raw base64 or a data url and returns the png bytes.
func DecodeSignature(raw string) ([]byte, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return nil, domainerrors.Invalid("signature", "is required")
	}
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, domainerrors.Invalid("signature", "data url must be base64 encoded")
		}
		if !strings.HasPrefix(header, "data:image/png") {
			return nil, domainerrors.Invalid("signature", "must be a png image")
		}
		payload = data
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, domainerrors.Invalid("signature", "is not valid base64")
		}
	}
	if _, err := png.DecodeConfig(bytes.NewReader(decoded)); err != nil {
		return nil, domainerrors.Invalid("signature", "is not a png image")
	}
	return decoded, nil
}
