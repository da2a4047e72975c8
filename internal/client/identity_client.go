package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/pkg/config"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
)

const (
	internalRequestHeader = "X-Internal-Request"
	serviceSecretHeader   = "X-Internal-Service-Secret"
)

// CreateIdentityRequest carries the attributes for a new login account.
// The password is plaintext in transit to the auth service, which owns
// hashing; it must never be logged or persisted here.
type CreateIdentityRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	SchoolID  string `json:"schoolId"`
	RoleName  string `json:"roleName"`
}

// IdentityClient calls the auth service's internal user endpoints. Every
// request carries the internal-request marker and a bounded timeout; the
// auth service rejects callers without the marker with 403.
type IdentityClient struct {
	baseURL string
	secret  string
	http    *http.Client
	logger  *zap.Logger
}

// NewIdentityClient constructs a client from configuration.
func NewIdentityClient(cfg config.AuthClientConfig, logger *zap.Logger) *IdentityClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IdentityClient{
		baseURL: cfg.BaseURL,
		secret:  cfg.ServiceSecret,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type identityEnvelope struct {
	Data struct {
		User models.Identity `json:"user"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIdentity creates a login account for a student and returns the
// identity owned by the auth service.
func (c *IdentityClient) CreateIdentity(ctx context.Context, req CreateIdentityRequest) (*models.Identity, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode identity request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/users", bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build identity request")
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErrors.ClassifyRemote(err, "auth service unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	var envelope identityEnvelope
	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode identity response")
		}
		identity := envelope.Data.User
		if identity.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrInternal, "auth service returned no user id")
		}
		return &identity, nil
	}

	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return nil, c.classifyStatus(resp.StatusCode, envelope.Error.Message, "create identity")
}

// DeleteIdentity removes a login account. Deleting an id that does not
// exist is success so compensation stays idempotent.
func (c *IdentityClient) DeleteIdentity(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/internal/users/%s", c.baseURL, id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build identity delete request")
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return appErrors.ClassifyRemote(err, "auth service unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// Already gone; compensation must be repeatable.
		return nil
	default:
		var envelope identityEnvelope
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return c.classifyStatus(resp.StatusCode, envelope.Error.Message, "delete identity")
	}
}

func (c *IdentityClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalRequestHeader, "true")
	if c.secret != "" {
		req.Header.Set(serviceSecretHeader, c.secret)
	}
}

func (c *IdentityClient) classifyStatus(status int, remoteMessage, op string) *appErrors.Error {
	message := fmt.Sprintf("auth service rejected %s", op)
	if remoteMessage != "" {
		message = remoteMessage
	}
	switch status {
	case http.StatusBadRequest:
		return appErrors.Clone(appErrors.ErrValidation, message)
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, message)
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, message)
	case http.StatusConflict:
		return appErrors.Clone(appErrors.ErrConflict, message)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return appErrors.Clone(appErrors.ErrRemoteUnavailable, message)
	default:
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("auth service error (%d) on %s", status, op))
	}
}
