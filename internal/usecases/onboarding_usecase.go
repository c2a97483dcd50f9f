package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/crypto"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
)

const (
	cardNumberDigits = 10
	voidTimeout      = 15 * time.Second
)

var tracer = otel.Tracer("memberhub.backend/usecases")

var newCardNumber = func() (string, error) {
	return crypto.RandomDigits(cardNumberDigits)
}

// OnboardingUsecase sequences the document, payment and signature stages. The
// current stage is always derived from the persisted record.
type OnboardingUsecase struct {
	uow      repositories.UnitOfWork
	members  repositories.MemberProfileRepository
	records  repositories.OnboardingRecordRepository
	payments repositories.PaymentAttemptRepository
	cards    repositories.MembershipCardRepository

	documents *DocumentStage
	payment   *PaymentStage
	signature *SignatureStage
	poller    PaymentPoller
	tracker   PollTracker
	startLock PaymentStartLock
	metrics   *metrics.Metrics
	now       func() time.Time
}

// OnboardingDeps groups the collaborators of the orchestrator.
type OnboardingDeps struct {
	UnitOfWork repositories.UnitOfWork
	Members    repositories.MemberProfileRepository
	Records    repositories.OnboardingRecordRepository
	Payments   repositories.PaymentAttemptRepository
	Cards      repositories.MembershipCardRepository
	Documents  *DocumentStage
	Payment    *PaymentStage
	Signature  *SignatureStage
	Poller     PaymentPoller
	Tracker    PollTracker
	StartLock  PaymentStartLock
	Metrics    *metrics.Metrics
}

// NewOnboardingUsecase creates a new onboarding usecase. Without a StartLock,
// payment starts are serialized in process only.
func NewOnboardingUsecase(deps OnboardingDeps) *OnboardingUsecase {
	var startLock PaymentStartLock = newLocalStartLock()
	if deps.StartLock != nil {
		startLock = deps.StartLock
	}
	return &OnboardingUsecase{
		uow:       deps.UnitOfWork,
		members:   deps.Members,
		records:   deps.Records,
		payments:  deps.Payments,
		cards:     deps.Cards,
		documents: deps.Documents,
		payment:   deps.Payment,
		signature: deps.Signature,
		poller:    deps.Poller,
		tracker:   deps.Tracker,
		startLock: startLock,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

func startSpan(ctx context.Context, name string, session *entities.Session) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if session != nil {
		span.SetAttributes(attribute.String("identity.id", session.IdentityID.String()))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func stageMismatch(current, want entities.OnboardingStage) error {
	msg := fmt.Sprintf("onboarding is at %s, not %s", current, want)
	return domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeStageMismatch, msg, domainerrors.ErrStageMismatch)
}

func paymentInProgress() error {
	return domainerrors.NewAppError(http.StatusConflict, domainerrors.CodePaymentInProgress, domainerrors.ErrPaymentInProgress.Error(), domainerrors.ErrPaymentInProgress)
}

func (u *OnboardingUsecase) load(ctx context.Context, identityID uuid.UUID) (*entities.OnboardingRecord, entities.OnboardingStage, error) {
	record, err := u.records.Get(ctx, identityID)
	if err != nil {
		return nil, "", domainerrors.Persistence("load onboarding record", err)
	}
	return record, entities.DeriveStage(record), nil
}

func (u *OnboardingUsecase) latestAttempt(ctx context.Context, identityID uuid.UUID) (*entities.PaymentAttempt, error) {
	attempt, err := u.payments.GetLatestByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, domainerrors.Persistence("load payment attempt", err)
	}
	return attempt, nil
}

// GetState reports the derived stage. It also restarts a poll lost with a previous
// process and finishes an advance or activation interrupted by a failed write.
func (u *OnboardingUsecase) GetState(ctx context.Context, session *entities.Session) (state *entities.OnboardingState, err error) {
	ctx, span := startSpan(ctx, "onboarding.GetState", session)
	defer func() { endSpan(span, err) }()

	record, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	state = &entities.OnboardingState{Stage: stage, Record: record}

	switch stage {
	case entities.StagePayment:
		attempt, err := u.latestAttempt(ctx, session.IdentityID)
		if err != nil {
			return nil, err
		}
		if attempt == nil {
			break
		}
		if attempt.Status.Succeeded() {
			// paid, but the record update was lost
			if err := u.complete(ctx, attempt.IdentityID, attempt.PaymentID, attempt.Status); err != nil {
				return nil, err
			}
			record, stage, err = u.load(ctx, session.IdentityID)
			if err != nil {
				return nil, err
			}
			state.Stage, state.Record = stage, record
			break
		}
		u.ensurePolling(ctx, session, attempt)
		u.fillDisplayAsset(ctx, attempt)
		state.ActivePayment = attempt
	case entities.StageComplete:
		if !record.CompletedAt.Valid {
			if err := u.activate(ctx, session.IdentityID); err != nil {
				return nil, err
			}
			record, stage, err = u.load(ctx, session.IdentityID)
			if err != nil {
				return nil, err
			}
			state.Stage, state.Record = stage, record
		}
	}
	return state, nil
}

// UploadDocument stores one document slot and persists its url immediately.
// Slots can be replaced until a payment has been accepted.
func (u *OnboardingUsecase) UploadDocument(ctx context.Context, session *entities.Session, kind entities.DocumentKind, data []byte) (upload *entities.DocumentUpload, err error) {
	ctx, span := startSpan(ctx, "onboarding.UploadDocument", session)
	span.SetAttributes(attribute.String("document.kind", string(kind)))
	defer func() { endSpan(span, err) }()

	_, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if stage != entities.StageDocuments && stage != entities.StagePayment {
		return nil, stageMismatch(stage, entities.StageDocuments)
	}
	if stage == entities.StagePayment {
		attempt, err := u.latestAttempt(ctx, session.IdentityID)
		if err != nil {
			return nil, err
		}
		if attempt != nil && !attempt.Status.Terminal() {
			return nil, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodePaymentInProgress, "documents cannot change while a payment is processing", domainerrors.ErrPaymentInProgress)
		}
	}

	url, err := u.documents.Store(ctx, session.IdentityID, kind, data)
	if err != nil {
		logger.Warn(ctx, "Document upload rejected",
			zap.String("identity_id", session.IdentityID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}

	field := repositories.FieldIDDocumentURL
	if kind == entities.DocumentKindAddress {
		field = repositories.FieldAddressDocumentURL
	}
	if err := u.records.SetField(ctx, session.IdentityID, field, url); err != nil {
		return nil, domainerrors.Persistence("save document url", err)
	}

	logger.Info(ctx, "Document stored",
		zap.String("identity_id", session.IdentityID.String()),
		zap.String("kind", string(kind)),
	)
	return &entities.DocumentUpload{Kind: kind, URL: url}, nil
}

// SubmitDocuments closes the document stage once both slots are stored.
func (u *OnboardingUsecase) SubmitDocuments(ctx context.Context, session *entities.Session) (state *entities.OnboardingState, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitDocuments", session)
	defer func() { endSpan(span, err) }()

	record, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	switch stage {
	case entities.StagePayment:
		u.metrics.StageReached(string(entities.StagePayment))
		return &entities.OnboardingState{Stage: stage, Record: record}, nil
	case entities.StageDocuments:
		missing := entities.DocumentKindID
		if record.DocumentURL(entities.DocumentKindID).Valid {
			missing = entities.DocumentKindAddress
		}
		return nil, &domainerrors.ValidationError{Field: string(missing), Reason: domainerrors.ErrDocumentsMissing.Error()}
	default:
		return nil, stageMismatch(stage, entities.StageDocuments)
	}
}

// StartPayment charges the membership fee. Card payments settle synchronously;
// pix and boleto payments are polled until the gateway reports a final status.
func (u *OnboardingUsecase) StartPayment(ctx context.Context, session *entities.Session, input *entities.StartPaymentInput) (result *entities.StartPaymentResult, err error) {
	ctx, span := startSpan(ctx, "onboarding.StartPayment", session)
	defer func() { endSpan(span, err) }()

	_, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if stage != entities.StagePayment {
		return nil, stageMismatch(stage, entities.StagePayment)
	}

	// held until the attempt row exists so a second session cannot charge again
	release, acquired, err := u.startLock.Acquire(ctx, session.IdentityID)
	if err != nil {
		return nil, domainerrors.Persistence("lock payment start", err)
	}
	if !acquired {
		return nil, paymentInProgress()
	}
	defer release()

	latest, err := u.latestAttempt(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		switch {
		case latest.Status.Succeeded():
			// paid, but the record update was lost; finish it instead of charging twice
			if err := u.complete(ctx, latest.IdentityID, latest.PaymentID, latest.Status); err != nil {
				return nil, err
			}
			return &entities.StartPaymentResult{Stage: entities.StageSignature, Attempt: latest}, nil
		case !latest.Status.Terminal():
			u.ensurePolling(ctx, session, latest)
			return nil, paymentInProgress()
		}
	}

	if err := u.payment.Validate(input); err != nil {
		return nil, err
	}
	member, err := u.members.GetByID(ctx, session.IdentityID)
	if err != nil {
		return nil, domainerrors.Persistence("load member profile", err)
	}
	if member.HasPlaceholderNationalID() {
		return nil, domainerrors.Invalid("nationalId", "complete your registration before paying")
	}

	attempt, err := u.payment.Initiate(ctx, member, input)
	if err != nil {
		logger.Warn(ctx, "Payment initiation failed",
			zap.String("identity_id", session.IdentityID.String()),
			zap.String("method", string(input.Method)),
			zap.Error(err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.id", attempt.PaymentID))

	if err := u.payments.Create(ctx, attempt); err != nil {
		u.voidUnrecorded(ctx, attempt, err)
		return nil, domainerrors.Persistence("save payment attempt", err)
	}
	logger.Info(ctx, "Payment initiated",
		zap.String("identity_id", session.IdentityID.String()),
		zap.String("payment_id", attempt.PaymentID),
		zap.String("method", string(attempt.Method)),
		zap.String("status", string(attempt.Status)),
	)

	if attempt.Method == entities.PaymentMethodCreditCard {
		if !attempt.Status.Succeeded() {
			return nil, &domainerrors.GatewayError{
				Op:  "charge credit card",
				Err: fmt.Errorf("payment %s returned status %s: %w", attempt.PaymentID, attempt.Status, domainerrors.ErrPaymentFailed),
			}
		}
		if err := u.complete(ctx, attempt.IdentityID, attempt.PaymentID, attempt.Status); err != nil {
			return nil, err
		}
		return &entities.StartPaymentResult{Stage: entities.StageSignature, Attempt: attempt}, nil
	}

	u.ensurePolling(ctx, session, attempt)
	return &entities.StartPaymentResult{Stage: entities.StagePayment, Attempt: attempt}, nil
}

// PaymentStatus returns the latest attempt together with the derived stage.
func (u *OnboardingUsecase) PaymentStatus(ctx context.Context, session *entities.Session) (result *entities.PaymentStatusResult, err error) {
	ctx, span := startSpan(ctx, "onboarding.PaymentStatus", session)
	defer func() { endSpan(span, err) }()

	attempt, err := u.latestAttempt(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domainerrors.NotFound("no payment has been started")
	}
	_, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if stage == entities.StagePayment && attempt.Status.Succeeded() {
		if err := u.complete(ctx, attempt.IdentityID, attempt.PaymentID, attempt.Status); err != nil {
			return nil, err
		}
		if _, stage, err = u.load(ctx, session.IdentityID); err != nil {
			return nil, err
		}
	}

	result = &entities.PaymentStatusResult{Stage: stage, Attempt: attempt}
	switch attempt.Status {
	case entities.PaymentStatusFailed:
		result.Error = domainerrors.ErrPaymentFailed.Error()
	case entities.PaymentStatusCancelled:
		result.Error = domainerrors.ErrPaymentCancelled.Error()
	case entities.PaymentStatusPending, entities.PaymentStatusProcessing:
		if stage == entities.StagePayment {
			u.ensurePolling(ctx, session, attempt)
			u.fillDisplayAsset(ctx, attempt)
		}
	}
	return result, nil
}

// CancelPayment deletes the open charge at the gateway, stops polling it and marks
// the attempt cancelled so a new payment can be started. When the gateway refuses,
// usually because the charge was just paid, nothing changes locally.
func (u *OnboardingUsecase) CancelPayment(ctx context.Context, session *entities.Session) (attempt *entities.PaymentAttempt, err error) {
	ctx, span := startSpan(ctx, "onboarding.CancelPayment", session)
	defer func() { endSpan(span, err) }()

	attempt, err = u.latestAttempt(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.Status.Terminal() {
		return nil, domainerrors.NotFound("no payment is being processed")
	}

	if err := u.payment.Void(ctx, attempt); err != nil {
		logger.Warn(ctx, "Gateway refused to cancel payment, polling continues",
			zap.String("identity_id", session.IdentityID.String()),
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}
	u.poller.Cancel(ctx, attempt.PaymentID)
	changed, err := u.payments.UpdateStatus(ctx, attempt.PaymentID, entities.PaymentStatusCancelled)
	if err != nil {
		return nil, domainerrors.Persistence("cancel payment attempt", err)
	}
	if !changed {
		// settled between the read and the cancel
		current, err := u.payments.GetByPaymentID(ctx, attempt.PaymentID)
		if err != nil {
			return nil, domainerrors.Persistence("load payment attempt", err)
		}
		return current, nil
	}
	attempt.Status = entities.PaymentStatusCancelled
	logger.Info(ctx, "Payment cancelled by member",
		zap.String("identity_id", session.IdentityID.String()),
		zap.String("payment_id", attempt.PaymentID),
	)
	return attempt, nil
}

// SubmitSignature generates the signed application and activates the membership.
func (u *OnboardingUsecase) SubmitSignature(ctx context.Context, session *entities.Session, input *entities.SubmitSignatureInput) (state *entities.OnboardingState, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitSignature", session)
	defer func() { endSpan(span, err) }()

	_, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	if stage != entities.StageSignature {
		return nil, stageMismatch(stage, entities.StageSignature)
	}
	member, err := u.members.GetByID(ctx, session.IdentityID)
	if err != nil {
		return nil, domainerrors.Persistence("load member profile", err)
	}

	url, err := u.signature.Sign(ctx, member, input)
	if err != nil {
		logger.Warn(ctx, "Signature stage failed", zap.String("identity_id", session.IdentityID.String()), zap.Error(err))
		return nil, err
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.records.SetField(txCtx, session.IdentityID, repositories.FieldSignatureURL, url); err != nil {
			return domainerrors.Persistence("save signature url", err)
		}
		return u.activateTx(txCtx, session.IdentityID)
	})
	if err != nil {
		return nil, err
	}
	u.metrics.StageReached(string(entities.StageComplete))
	logger.Info(ctx, "Onboarding complete", zap.String("identity_id", session.IdentityID.String()))

	record, stage, err := u.load(ctx, session.IdentityID)
	if err != nil {
		return nil, err
	}
	return &entities.OnboardingState{Stage: stage, Record: record}, nil
}

// SettlePayment applies a final gateway status observed by the poller.
func (u *OnboardingUsecase) SettlePayment(ctx context.Context, attempt *entities.PaymentAttempt, status entities.PaymentStatus) (err error) {
	ctx, span := tracer.Start(ctx, "onboarding.SettlePayment")
	span.SetAttributes(
		attribute.String("payment.id", attempt.PaymentID),
		attribute.String("payment.status", string(status)),
	)
	defer func() { endSpan(span, err) }()

	if status.Succeeded() {
		return u.complete(ctx, attempt.IdentityID, attempt.PaymentID, status)
	}
	if _, err := u.payments.UpdateStatus(ctx, attempt.PaymentID, status); err != nil {
		return domainerrors.Persistence("update payment status", err)
	}
	logger.Info(ctx, "Payment did not succeed",
		zap.String("identity_id", attempt.IdentityID.String()),
		zap.String("payment_id", attempt.PaymentID),
		zap.String("status", string(status)),
	)
	return nil
}

// CompletePayment records a confirmed payment and advances to the signature stage.
// Repeated calls for the same payment are no-ops.
func (u *OnboardingUsecase) CompletePayment(ctx context.Context, identityID uuid.UUID, paymentID string) error {
	return u.complete(ctx, identityID, paymentID, entities.PaymentStatusConfirmed)
}

func (u *OnboardingUsecase) complete(ctx context.Context, identityID uuid.UUID, paymentID string, status entities.PaymentStatus) error {
	advanced := false
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if _, err := u.payments.UpdateStatus(txCtx, paymentID, status); err != nil {
			return domainerrors.Persistence("update payment status", err)
		}
		record, err := u.records.Get(txCtx, identityID)
		if err != nil {
			return domainerrors.Persistence("load onboarding record", err)
		}
		switch entities.DeriveStage(record) {
		case entities.StagePayment:
			if err := u.records.SetField(txCtx, identityID, repositories.FieldPaymentID, paymentID); err != nil {
				return domainerrors.Persistence("save payment id", err)
			}
			advanced = true
		case entities.StageDocuments:
			// the record was reset while the payment was pending
			logger.Warn(txCtx, "Payment settled for a reset onboarding record",
				zap.String("identity_id", identityID.String()),
				zap.String("payment_id", paymentID),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if advanced {
		u.metrics.StageReached(string(entities.StageSignature))
		logger.Info(ctx, "Payment confirmed, onboarding advanced to signature",
			zap.String("identity_id", identityID.String()),
			zap.String("payment_id", paymentID),
		)
	}
	return nil
}

func (u *OnboardingUsecase) activate(ctx context.Context, identityID uuid.UUID) error {
	return u.uow.Do(ctx, func(txCtx context.Context) error {
		return u.activateTx(txCtx, identityID)
	})
}

// activateTx marks the record complete, flips payment_complete when the stored
// value differs and issues the membership card once.
func (u *OnboardingUsecase) activateTx(ctx context.Context, identityID uuid.UUID) error {
	if err := u.records.MarkCompleted(ctx, identityID); err != nil {
		return domainerrors.Persistence("mark onboarding complete", err)
	}
	changed, err := u.members.SetPaymentComplete(ctx, identityID, true)
	if err != nil {
		return domainerrors.Persistence("activate member", err)
	}
	if changed {
		logger.Info(ctx, "Member activated", zap.String("identity_id", identityID.String()))
	}

	number, err := newCardNumber()
	if err != nil {
		return err
	}
	now := u.now()
	card := &entities.MembershipCard{
		IdentityID: identityID,
		CardNumber: number,
		Status:     entities.CardStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := u.cards.CreateIfAbsent(ctx, card)
	if err != nil {
		var drift *domainerrors.SchemaDriftError
		if errors.As(err, &drift) {
			logger.Warn(ctx, "Membership cards unavailable, skipping card", zap.String("feature", drift.Feature))
			return nil
		}
		return domainerrors.Persistence("create membership card", err)
	}
	if created {
		logger.Info(ctx, "Membership card issued", zap.String("identity_id", identityID.String()))
	}
	return nil
}

func (u *OnboardingUsecase) ensurePolling(ctx context.Context, session *entities.Session, attempt *entities.PaymentAttempt) {
	if !attempt.Method.Polled() || attempt.Status.Terminal() || u.poller.IsActive(attempt.PaymentID) {
		return
	}
	started, err := u.poller.Start(ctx, attempt, session.ID)
	if err != nil {
		logger.Error(ctx, "Failed to start payment poll", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
		return
	}
	if !started || u.tracker == nil {
		return
	}
	if err := u.tracker.TrackPoll(ctx, session.ID, attempt.PaymentID); err != nil {
		logger.Warn(ctx, "Failed to track session poll", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
	}
}

// fillDisplayAsset fetches a pix payload the gateway did not return at initiation.
func (u *OnboardingUsecase) fillDisplayAsset(ctx context.Context, attempt *entities.PaymentAttempt) {
	if attempt.Method != entities.PaymentMethodPix || attempt.Status.Terminal() || attempt.DisplayAsset != "" {
		return
	}
	payload, err := u.payment.DisplayAsset(ctx, attempt)
	if err != nil {
		logger.Warn(ctx, "Pix payload still unavailable", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
		return
	}
	attempt.DisplayAsset = payload
	if err := u.payments.SetDisplayAsset(ctx, attempt.PaymentID, payload); err != nil {
		logger.Warn(ctx, "Failed to save pix payload", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
	}
}

// voidUnrecorded voids a charge whose attempt row could not be written, so a
// retry cannot bill the member twice.
func (u *OnboardingUsecase) voidUnrecorded(ctx context.Context, attempt *entities.PaymentAttempt, cause error) {
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), voidTimeout)
	defer cancel()

	fields := []zap.Field{
		zap.String("identity_id", attempt.IdentityID.String()),
		zap.String("payment_id", attempt.PaymentID),
		zap.String("method", string(attempt.Method)),
		zap.NamedError("cause", cause),
	}
	if err := u.payment.Void(voidCtx, attempt); err != nil {
		logger.Error(ctx, "Unrecorded payment could not be voided", append(fields, zap.Error(err))...)
		return
	}
	logger.Warn(ctx, "Unrecorded payment voided", fields...)
}
