package birbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// EnvProduction and EnvSandbox select which base URL a request goes to.
	EnvProduction = "production"
	EnvSandbox    = "sandbox"

	loginPath     = "/login"
	accountsPath  = "/accounts"
	statementPath = "/v2/statement/account"

	// queryDateFormat is the dd-mm-yyyy format the statement endpoint expects.
	queryDateFormat = "02-01-2006"
)

// Client handles communication with the Birbank Business B2B API.
// It classifies responses into typed errors (errors.go) and does no retrying
// itself; retry policy belongs to the sync orchestrator.
type Client struct {
	httpClient      *http.Client
	statementClient *http.Client
	productionURL   string
	sandboxURL      string
	headers         HeaderProvider
}

// NewClient creates a Birbank API client. Statement fetches get a longer
// timeout than the other endpoints because large windows are slow bank-side.
func NewClient(productionURL, sandboxURL string, requestTimeout, statementTimeout time.Duration, headers HeaderProvider) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		httpClient:      &http.Client{Timeout: requestTimeout, Transport: transport},
		statementClient: &http.Client{Timeout: statementTimeout, Transport: transport},
		productionURL:   productionURL,
		sandboxURL:      sandboxURL,
		headers:         headers,
	}
}

func (c *Client) baseURL(environment string) string {
	if environment == EnvSandbox {
		return c.sandboxURL
	}
	return c.productionURL
}

// envelope is the outer response body shared by all endpoints.
type envelope struct {
	ResponseData json.RawMessage `json:"responseData"`
	APIException *apiException   `json:"apiException,omitempty"`
}

// apiException is the documented application-level error payload the bank
// returns with a 200 status on some internal faults.
type apiException struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LoginResult holds the bearer token issued by POST /login.
type LoginResult struct {
	Token     string `json:"jwttoken"`
	ExpiresIn int    `json:"expiresIn"` // seconds; 0 means the server declared no TTL
}

// RemoteAccount is one entry of the accounts list. Transient: used for
// discovery and journal linking, never persisted.
type RemoteAccount struct {
	IBAN        string      `json:"ibanAcNo"`
	Currency    string      `json:"ccy"`
	Description string      `json:"acDesc"`
	Balance     json.Number `json:"currAmt"`
}

// Label returns the display name used when reporting unlinked accounts.
func (a *RemoteAccount) Label() string {
	return fmt.Sprintf("%s (%s) - %s", a.Description, a.IBAN, a.Currency)
}

type accountsData struct {
	AccountsList []RemoteAccount `json:"accountsList"`
}

// StatementEntry is one transaction record from the statement endpoint.
type StatementEntry struct {
	TrnRefNo     string      `json:"trnRefNo"`
	TrnDt        string      `json:"trnDt"` // "Dec 30, 2025" or "2025-12-30", parsed downstream
	LcyAmount    json.Number `json:"lcyAmount"`
	Currency     string      `json:"ccy"`
	Purpose      string      `json:"purpose"`
	ContrAccount string      `json:"contrAccount"`
}

// Amount returns the local-currency amount as a decimal.
func (e *StatementEntry) Amount() (decimal.Decimal, error) {
	if e.LcyAmount == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(e.LcyAmount.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse lcyAmount %q: %w", e.LcyAmount, err)
	}
	return amount, nil
}

// Reference returns the payment reference: the purpose when present,
// otherwise the transaction reference number.
func (e *StatementEntry) Reference() string {
	if e.Purpose != "" {
		return e.Purpose
	}
	return e.TrnRefNo
}

// StatementQuery identifies one page of one account's statement window.
type StatementQuery struct {
	AccountNumber string
	From          time.Time
	To            time.Time
	Page          int
}

// StatementPage is one page of statement entries. MorePages signals whether
// the caller should request the next page.
type StatementPage struct {
	Entries   []StatementEntry
	MorePages bool
}

type statementData struct {
	Operations struct {
		StatementList []StatementEntry `json:"statementList"`
	} `json:"operations"`
	MorePages bool `json:"morePages"`
}

// Login authenticates with username/password and returns a bearer token.
func (c *Client) Login(ctx context.Context, environment, username, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(environment)+loginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}

	data, err := c.send(c.httpClient, req, "")
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if result.Token == "" {
		return nil, &AuthError{Status: http.StatusOK, Message: "no token returned"}
	}

	return &result, nil
}

// ListAccounts fetches the remote bank accounts visible to this connection.
func (c *Client) ListAccounts(ctx context.Context, environment, token string) ([]RemoteAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(environment)+accountsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create accounts request: %w", err)
	}

	data, err := c.send(c.httpClient, req, token)
	if err != nil {
		return nil, err
	}

	var accounts accountsData
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts response: %w", err)
	}

	return accounts.AccountsList, nil
}

// AccountStatement fetches one page of an account's statement. Pages are
// requested in ascending order until MorePages is false or a page comes
// back empty.
func (c *Client) AccountStatement(ctx context.Context, environment, token string, q StatementQuery) (*StatementPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(environment)+statementPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement request: %w", err)
	}

	params := url.Values{}
	params.Set("accountNumber", q.AccountNumber)
	params.Set("fromDate", q.From.Format(queryDateFormat))
	params.Set("toDate", q.To.Format(queryDateFormat))
	params.Set("page", strconv.Itoa(q.Page))
	req.URL.RawQuery = params.Encode()

	data, err := c.send(c.statementClient, req, token)
	if err != nil {
		return nil, err
	}

	var stmt statementData
	if err := json.Unmarshal(data, &stmt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statement response: %w", err)
	}

	return &StatementPage{
		Entries:   stmt.Operations.StatementList,
		MorePages: stmt.MorePages,
	}, nil
}

// send executes the request and classifies the response. On success it
// returns the raw responseData block for the caller to unmarshal.
func (c *Client) send(client *http.Client, req *http.Request, token string) (json.RawMessage, error) {
	c.headers.Apply(req.Header)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Status: resp.StatusCode, Message: errorMessage(body)}
	case resp.StatusCode == http.StatusForbidden:
		return nil, &ForbiddenError{Status: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode, Message: errorMessage(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &ServerError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response envelope: %w", err)
	}
	if env.APIException != nil {
		return nil, &ServerError{
			Status:  resp.StatusCode,
			Code:    env.APIException.Code,
			Message: env.APIException.Message,
		}
	}

	return env.ResponseData, nil
}

// errorMessage pulls a human-readable message out of an error body, falling
// back to the raw text.
func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.APIException != nil {
		return env.APIException.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
