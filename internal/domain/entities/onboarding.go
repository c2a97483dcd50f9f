package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// OnboardingStage is derived from persisted fields, never stored.
type OnboardingStage string

const (
	StageDocuments OnboardingStage = "DOCUMENTS"
	StagePayment   OnboardingStage = "PAYMENT"
	StageSignature OnboardingStage = "SIGNATURE"
	StageComplete  OnboardingStage = "COMPLETE"
)

// DocumentKind identifies a document slot
type DocumentKind string

const (
	DocumentKindID      DocumentKind = "id"
	DocumentKindAddress DocumentKind = "address"
)

// Valid reports whether the kind names a known slot.
func (k DocumentKind) Valid() bool {
	return k == DocumentKindID || k == DocumentKindAddress
}

// OnboardingRecord tracks progress. Fields are only added, except by admin reset.
type OnboardingRecord struct {
	IdentityID         uuid.UUID   `json:"identityId"`
	IDDocumentURL      null.String `json:"idDocumentUrl"`
	AddressDocumentURL null.String `json:"addressDocumentUrl"`
	PaymentID          null.String `json:"paymentId"`
	SignatureURL       null.String `json:"signatureUrl"`
	CompletedAt        null.Time   `json:"completedAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// NewOnboardingRecord returns an empty record for identityID.
func NewOnboardingRecord(identityID uuid.UUID) *OnboardingRecord {
	return &OnboardingRecord{IdentityID: identityID}
}

// DocumentURL returns the stored url for a slot.
func (r *OnboardingRecord) DocumentURL(kind DocumentKind) null.String {
	if r == nil {
		return null.String{}
	}
	switch kind {
	case DocumentKindID:
		return r.IDDocumentURL
	case DocumentKindAddress:
		return r.AddressDocumentURL
	}
	return null.String{}
}

// HasBothDocuments reports whether both document slots are filled.
func (r *OnboardingRecord) HasBothDocuments() bool {
	return present(r.DocumentURL(DocumentKindID)) && present(r.DocumentURL(DocumentKindAddress))
}

// DeriveStage computes the first incomplete stage. It reads the record only.
func DeriveStage(r *OnboardingRecord) OnboardingStage {
	if r == nil {
		return StageDocuments
	}
	switch {
	case present(r.SignatureURL):
		return StageComplete
	case present(r.PaymentID):
		return StageSignature
	case r.HasBothDocuments():
		return StagePayment
	default:
		return StageDocuments
	}
}

func present(s null.String) bool {
	return s.Valid && s.String != ""
}

// OnboardingState is what the orchestrator reports to callers.
type OnboardingState struct {
	Stage         OnboardingStage   `json:"stage"`
	Record        *OnboardingRecord `json:"record"`
	ActivePayment *PaymentAttempt   `json:"activePayment,omitempty"`
}

// DocumentUpload is the result of storing one document slot.
type DocumentUpload struct {
	Kind DocumentKind `json:"kind"`
	URL  string       `json:"url"`
}

// SubmitSignatureInput carries the signature as base64 or a data URL.
type SubmitSignatureInput struct {
	Signature string `json:"signature" binding:"required"`
}

// ApplicationDocument is the applicant data composed into the signed application.
type ApplicationDocument struct {
	Organization string
	Name         string
	DisplayID    string
	NationalID   string
	Email        string
	Phone        string
	Profession   string
	BirthDate    null.Time
	SignedAt     time.Time
	Signature    []byte
}
