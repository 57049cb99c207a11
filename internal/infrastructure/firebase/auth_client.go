package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"instapro/internal/domain/service"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

var _ service.TokenVerifier = (*FirebaseAuthClient)(nil)

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}
