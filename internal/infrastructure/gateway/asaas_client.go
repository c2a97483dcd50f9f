package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/pkg/logger"
)

const (
	apiKeyHeader   = "access_token"
	maxErrorBody   = 4096
	defaultTimeout = 15 * time.Second
	dueDateLayout  = "2006-01-02"
	tracerName     = "memberhub.backend/gateway"
	userAgent      = "memberhub-backend"
)

var tracer = otel.Tracer(tracerName)

// APIError is a non-2xx gateway answer.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to an Asaas compatible payments API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a gateway client. A nil httpClient gets a client with the default timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

type customerRequest struct {
	Name        string `json:"name"`
	CpfCnpj     string `json:"cpfCnpj"`
	Email       string `json:"email,omitempty"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type customerList struct {
	Data []customerResponse `json:"data"`
}

type creditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

type creditCardHolderInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
	Phone   string `json:"phone,omitempty"`
}

type paymentRequest struct {
	Customer             string                `json:"customer"`
	BillingType          string                `json:"billingType"`
	Value                json.Number           `json:"value"`
	DueDate              string                `json:"dueDate"`
	Description          string                `json:"description,omitempty"`
	ExternalReference    string                `json:"externalReference,omitempty"`
	CreditCard           *creditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *creditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
	RemoteIP             string                `json:"remoteIp,omitempty"`
}

type paymentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	BankSlipURL string `json:"bankSlipUrl"`
	InvoiceURL  string `json:"invoiceUrl"`
}

type pixQrCodeResponse struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// EnsureCustomer returns the gateway customer for the payer, creating it when absent.
func (c *Client) EnsureCustomer(ctx context.Context, customer entities.PaymentCustomer) (string, error) {
	ctx, span := tracer.Start(ctx, "gateway.EnsureCustomer")
	defer span.End()

	var list customerList
	query := url.Values{"cpfCnpj": {customer.NationalID}}
	if err := c.do(ctx, http.MethodGet, "/customers?"+query.Encode(), nil, &list); err != nil {
		recordErr(span, err)
		return "", err
	}
	if len(list.Data) > 0 && list.Data[0].ID != "" {
		return list.Data[0].ID, nil
	}

	var created customerResponse
	err := c.do(ctx, http.MethodPost, "/customers", customerRequest{
		Name:        customer.Name,
		CpfCnpj:     customer.NationalID,
		Email:       customer.Email,
		MobilePhone: customer.Phone,
	}, &created)
	if err != nil {
		recordErr(span, err)
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("gateway returned customer without id")
	}
	return created.ID, nil
}

// Initiate creates a charge. Pix charges are followed by a QR code lookup that
// fills DisplayAsset; boleto charges use the bank slip url. Once the charge exists
// a failed QR lookup leaves DisplayAsset empty instead of failing, so the caller
// never loses the payment id.
func (c *Client) Initiate(ctx context.Context, charge entities.PaymentCharge) (*entities.PaymentInitiation, error) {
	ctx, span := tracer.Start(ctx, "gateway.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("payment.method", string(charge.Method)))

	req := paymentRequest{
		Customer:          charge.CustomerID,
		BillingType:       string(charge.Method),
		Value:             json.Number(charge.Amount),
		DueDate:           charge.DueDate.Format(dueDateLayout),
		Description:       charge.Description,
		ExternalReference: charge.ExternalRef,
		RemoteIP:          charge.RemoteIP,
	}
	if charge.Method == entities.PaymentMethodCreditCard {
		if charge.CreditCard == nil {
			return nil, fmt.Errorf("credit card details are required")
		}
		req.CreditCard = &creditCard{
			HolderName:  charge.CreditCard.HolderName,
			Number:      charge.CreditCard.Number,
			ExpiryMonth: charge.CreditCard.ExpiryMonth,
			ExpiryYear:  charge.CreditCard.ExpiryYear,
			CCV:         charge.CreditCard.CCV,
		}
		req.CreditCardHolderInfo = &creditCardHolderInfo{
			Name:    charge.Holder.Name,
			Email:   charge.Holder.Email,
			CpfCnpj: charge.Holder.NationalID,
			Phone:   charge.Holder.Phone,
		}
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", req, &resp); err != nil {
		recordErr(span, err)
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("gateway returned payment without id")
	}
	span.SetAttributes(attribute.String("payment.id", resp.ID))

	out := &entities.PaymentInitiation{
		PaymentID: resp.ID,
		Status:    MapStatus(resp.Status),
	}
	switch charge.Method {
	case entities.PaymentMethodPix:
		payload, err := c.PixPayload(ctx, resp.ID)
		if err != nil {
			recordErr(span, err)
			logger.Warn(ctx, "Pix QR code lookup failed, payload will be fetched later",
				zap.String("payment_id", resp.ID),
				zap.Error(err),
			)
			break
		}
		out.DisplayAsset = payload
	case entities.PaymentMethodBoleto:
		out.DisplayAsset = resp.BankSlipURL
		if out.DisplayAsset == "" {
			out.DisplayAsset = resp.InvoiceURL
		}
	}
	return out, nil
}

// GetStatus reads the current status of a payment.
func (c *Client) GetStatus(ctx context.Context, paymentID string) (entities.PaymentStatus, error) {
	ctx, span := tracer.Start(ctx, "gateway.GetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		recordErr(span, err)
		return "", err
	}
	return MapStatus(resp.Status), nil
}

// PixPayload returns the copy and paste pix code of a charge.
func (c *Client) PixPayload(ctx context.Context, paymentID string) (string, error) {
	var qr pixQrCodeResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/pixQrCode", nil, &qr); err != nil {
		return "", err
	}
	if qr.Payload == "" {
		return "", fmt.Errorf("gateway returned pix qr code without payload")
	}
	return qr.Payload, nil
}

// CancelCharge deletes an unpaid charge so it can no longer be paid. A charge
// the gateway no longer knows counts as cancelled.
func (c *Client) CancelCharge(ctx context.Context, paymentID string) error {
	ctx, span := tracer.Start(ctx, "gateway.CancelCharge")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	err := c.do(ctx, http.MethodDelete, "/payments/"+url.PathEscape(paymentID), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		recordErr(span, err)
	}
	return err
}

// RefundCharge returns the full value of a captured card charge.
func (c *Client) RefundCharge(ctx context.Context, paymentID string) error {
	ctx, span := tracer.Start(ctx, "gateway.RefundCharge")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", struct{}{}, nil); err != nil {
		recordErr(span, err)
		return err
	}
	return nil
}

// MapStatus folds gateway statuses onto the attempt lifecycle. Unknown values
// keep the attempt in processing so polling continues.
func MapStatus(raw string) entities.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return entities.PaymentStatusPending
	case "CONFIRMED":
		return entities.PaymentStatusConfirmed
	case "RECEIVED", "RECEIVED_IN_CASH":
		return entities.PaymentStatusReceived
	case "OVERDUE", "REFUND_REQUESTED", "REFUND_IN_PROGRESS", "CHARGEBACK_REQUESTED", "CHARGEBACK_DISPUTE", "AWAITING_CHARGEBACK_REVERSAL", "FAILED":
		return entities.PaymentStatusFailed
	case "REFUNDED", "DELETED", "CANCELLED":
		return entities.PaymentStatusCancelled
	}
	return entities.PaymentStatusProcessing
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 {
		apiErr.Code = parsed.Errors[0].Code
		apiErr.Message = parsed.Errors[0].Description
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
