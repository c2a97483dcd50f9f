package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/pkg/utils"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Paginated sends a list page with its metadata
func Paginated(c *gin.Context, key string, items interface{}, meta utils.PaginationMeta) {
	c.JSON(http.StatusOK, gin.H{
		key:          items,
		"pagination": meta,
	})
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	appErr := toAppError(err)
	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"error":   appErr.Message, // Backward compatibility
	}
	var ve *domainerrors.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	var ue *domainerrors.UploadError
	if errors.As(err, &ue) {
		body["slot"] = ue.Slot
	}
	c.JSON(appErr.Status, body)
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func toAppError(err error) *domainerrors.AppError {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ve *domainerrors.ValidationError
	var pe *domainerrors.PersistenceError
	var ue *domainerrors.UploadError
	var ge *domainerrors.GatewayError
	switch {
	case errors.As(err, &ve):
		return domainerrors.NewAppError(http.StatusUnprocessableEntity, domainerrors.CodeValidation, ve.Error(), err)
	case errors.As(err, &ue):
		return domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeUpload, "upload failed, please retry", err)
	case errors.As(err, &ge):
		return domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeGateway, gatewayMessage(ge), err)
	case errors.As(err, &pe):
		return domainerrors.NewAppError(http.StatusServiceUnavailable, domainerrors.CodePersistence, "temporarily unable to save, please retry", err)
	case errors.Is(err, domainerrors.ErrNotFound), errors.Is(err, domainerrors.ErrSessionNotFound):
		return domainerrors.NotFound(err.Error())
	case errors.Is(err, domainerrors.ErrStageMismatch):
		return domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeStageMismatch, err.Error(), err)
	case errors.Is(err, domainerrors.ErrPaymentInProgress):
		return domainerrors.NewAppError(http.StatusConflict, domainerrors.CodePaymentInProgress, err.Error(), err)
	case errors.Is(err, domainerrors.ErrUnauthorized), errors.Is(err, domainerrors.ErrTokenExpired):
		return domainerrors.Unauthorized(err.Error())
	case errors.Is(err, domainerrors.ErrForbidden):
		return domainerrors.Forbidden(err.Error())
	case errors.Is(err, domainerrors.ErrInvalidInput), errors.Is(err, domainerrors.ErrBadRequest):
		return domainerrors.BadRequest(err.Error())
	case errors.Is(err, domainerrors.ErrAlreadyExists):
		return domainerrors.Conflict(err.Error())
	}
	// Default to Internal Server Error if not a known error
	return domainerrors.InternalError(err)
}

func gatewayMessage(ge *domainerrors.GatewayError) string {
	if errors.Is(ge, domainerrors.ErrPaymentFailed) {
		return "payment was declined"
	}
	return "payment provider unavailable, please retry"
}
