package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainerrors "memberhub.backend/internal/domain/errors"
)

func TestAdminClient_ListIdentitiesPaginates(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		var users []string
		switch r.URL.Query().Get("page") {
		case "1":
			users = []string{
				fmt.Sprintf(`{"id":%q,"email":"a@x.test","user_metadata":{"full_name":"Ana"}}`, ids[0]),
				fmt.Sprintf(`{"id":%q,"email":"b@x.test"}`, ids[1]),
			}
		case "2":
			users = []string{
				fmt.Sprintf(`{"id":%q,"email":"c@x.test"}`, ids[2]),
				`{"id":"not-a-uuid"}`,
			}
		}
		_, _ = w.Write([]byte(`{"users":[` + strings.Join(users, ",") + `]}`))
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL, "svc", srv.Client())
	c.perPage = 2

	got, err := c.ListIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[0], got[0].ID)
	assert.Equal(t, "Ana", got[0].MetadataString("full_name"))
	assert.Equal(t, ids[2], got[2].ID)
}

func TestAdminClient_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL, "anon", srv.Client())
	_, err := c.ListIdentities(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	noKey := NewAdminClient(srv.URL, "", nil)
	assert.False(t, noKey.CanList())
	_, err = noKey.GetIdentity(context.Background(), uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestAdminClient_GetIdentity(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users/"+id.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprintf(w, `{"id":%q,"email":"z@x.test","user_metadata":{"name":"Zé"}}`, id)
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL, "svc", srv.Client())
	got, err := c.GetIdentity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "z@x.test", got.Email)
	assert.Equal(t, "Zé", got.MetadataString("name"))

	_, err = c.GetIdentity(context.Background(), uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAdminClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL, "svc", srv.Client())
	_, err := c.ListIdentities(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
