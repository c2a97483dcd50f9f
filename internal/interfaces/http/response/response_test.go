package response

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/pkg/utils"
)

func TestSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, http.StatusOK, gin.H{"ok": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestPaginated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paginated(c, "members", []string{"a"}, utils.PaginationMeta{Page: 1, Limit: 20, TotalCount: 1, TotalPages: 1})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"members":["a"],"pagination":{"page":1,"limit":20,"totalCount":1,"totalPages":1}}`, w.Body.String())
}

func TestError_AppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	err := domainerrors.NotFound("missing")
	Error(c, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), domainerrors.CodeNotFound)
	assert.Contains(t, w.Body.String(), "missing")
}

func TestError_Taxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domainerrors.Invalid("nationalId", "is not a valid CPF"), http.StatusUnprocessableEntity, domainerrors.CodeValidation},
		{"persistence", domainerrors.Persistence("save", errors.New("conn reset")), http.StatusServiceUnavailable, domainerrors.CodePersistence},
		{"upload", &domainerrors.UploadError{Slot: "id", Err: errors.New("503")}, http.StatusBadGateway, domainerrors.CodeUpload},
		{"gateway", &domainerrors.GatewayError{Op: "initiate payment", Err: errors.New("timeout")}, http.StatusBadGateway, domainerrors.CodeGateway},
		{"stage", domainerrors.ErrStageMismatch, http.StatusConflict, domainerrors.CodeStageMismatch},
		{"in progress", domainerrors.ErrPaymentInProgress, http.StatusConflict, domainerrors.CodePaymentInProgress},
		{"session", domainerrors.ErrSessionNotFound, http.StatusNotFound, domainerrors.CodeNotFound},
		{"forbidden", domainerrors.ErrForbidden, http.StatusForbidden, domainerrors.CodeForbidden},
		{"already exists", domainerrors.ErrAlreadyExists, http.StatusConflict, domainerrors.CodeConflict},
		{"generic", errors.New("boom"), http.StatusInternalServerError, domainerrors.CodeInternalError},
		{"cancelled", context.Canceled, http.StatusInternalServerError, domainerrors.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}
}

func TestError_CarriesFieldAndSlot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, domainerrors.Invalid("address", "file is empty"))
	assert.Contains(t, w.Body.String(), `"field":"address"`)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Error(c, &domainerrors.UploadError{Slot: "signature", Err: errors.New("x")})
	assert.Contains(t, w.Body.String(), `"slot":"signature"`)
	assert.NotContains(t, w.Body.String(), `"x"`)
}

func TestError_DeclinedPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, &domainerrors.GatewayError{Op: "charge credit card", Err: domainerrors.ErrPaymentFailed})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "payment was declined")
}

func TestErrorWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorWithError(c, http.StatusBadRequest, "ERR_X", "bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ERR_X"`)
}
