package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
)

const (
	defaultPerPage = 200
	maxPages       = 500
	defaultTimeout = 10 * time.Second
)

// AdminClient lists identities through a GoTrue style admin API. It needs the
// service role key; without it every call reports ErrForbidden.
type AdminClient struct {
	baseURL    string
	serviceKey string
	perPage    int
	client     *http.Client
}

// NewAdminClient creates an identity admin client.
func NewAdminClient(baseURL, serviceKey string, httpClient *http.Client) *AdminClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &AdminClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		perPage:    defaultPerPage,
		client:     httpClient,
	}
}

type adminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

type adminUserList struct {
	Users []adminUser `json:"users"`
}

// ListIdentities walks every page of identities.
func (c *AdminClient) ListIdentities(ctx context.Context) ([]entities.Identity, error) {
	var out []entities.Identity
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.perPage))

		var list adminUserList
		if err := c.get(ctx, "/admin/users?"+q.Encode(), &list); err != nil {
			return nil, err
		}
		for _, u := range list.Users {
			identity, err := u.toEntity()
			if err != nil {
				continue
			}
			out = append(out, identity)
		}
		if len(list.Users) < c.perPage {
			return out, nil
		}
	}
	return out, nil
}

// GetIdentity fetches one identity by id.
func (c *AdminClient) GetIdentity(ctx context.Context, id uuid.UUID) (*entities.Identity, error) {
	var u adminUser
	if err := c.get(ctx, "/admin/users/"+url.PathEscape(id.String()), &u); err != nil {
		return nil, err
	}
	identity, err := u.toEntity()
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// CanList reports whether a service key is configured.
func (c *AdminClient) CanList() bool {
	return c.serviceKey != ""
}

func (c *AdminClient) get(ctx context.Context, path string, out any) error {
	if !c.CanList() {
		return domainerrors.ErrForbidden
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build identity admin request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity admin request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domainerrors.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return domainerrors.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("identity admin returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity admin response: %w", err)
	}
	return nil
}

func (u adminUser) toEntity() (entities.Identity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return entities.Identity{}, fmt.Errorf("invalid identity id %q: %w", u.ID, err)
	}
	return entities.Identity{
		ID:        id,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}, nil
}
