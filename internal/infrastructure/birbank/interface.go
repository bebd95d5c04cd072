package birbank

import (
	"context"
)

// ClientInterface defines the methods required from the Birbank API client
type ClientInterface interface {
	Login(ctx context.Context, environment, username, password string) (*LoginResult, error)
	ListAccounts(ctx context.Context, environment, token string) ([]RemoteAccount, error)
	AccountStatement(ctx context.Context, environment, token string, q StatementQuery) (*StatementPage, error)
}
