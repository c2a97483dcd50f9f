package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/internal/interfaces/http/middleware"
)

var testIdentity = entities.Identity{ID: uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6"), Email: "ana@example.com"}

var testSession = &entities.Session{ID: "sess-1", IdentityID: testIdentity.ID}

func withIdentity(c *gin.Context) {
	c.Set(middleware.IdentityKey, testIdentity)
	c.Next()
}

func withSession(c *gin.Context) {
	c.Set(middleware.SessionKey, testSession)
	c.Next()
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartFile(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "document.pdf")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
