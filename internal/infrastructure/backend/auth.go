package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vitos/crypto_watch/internal/domain"
)

// AuthClient performs the credential exchange against /auth/login and /auth/register.
type AuthClient struct {
	client *Client
}

func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	User        *struct {
		ID    flexibleID `json:"id"`
		Email string     `json:"email"`
	} `json:"user"`
}

func (a *AuthClient) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	return a.exchange(ctx, "/auth/login", email, password)
}

func (a *AuthClient) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	return a.exchange(ctx, "/auth/register", email, password)
}

func (a *AuthClient) exchange(ctx context.Context, path, email, password string) (*domain.Identity, error) {
	body, err := a.client.sendRequest(ctx, http.MethodPost, path, "", credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedResponse, path, err)
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: %s: missing access_token or user", domain.ErrMalformedResponse, path)
	}
	if resp.User.ID == "" {
		return nil, fmt.Errorf("%w: %s: user without id", domain.ErrMalformedResponse, path)
	}

	return &domain.Identity{
		UserID: string(resp.User.ID),
		Email:  resp.User.Email,
		Token:  resp.AccessToken,
	}, nil
}
