package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/ruteri/vaccine-ledger/api"
	"github.com/ruteri/vaccine-ledger/interfaces"
)

// LedgerClient talks to a ledger server on behalf of one principal.
type LedgerClient struct {
	baseURL    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
}

// NewLedgerClient creates a client for the server at baseURL.
//
// Parameters:
//   - baseURL: The server URL (e.g., "http://localhost:8080")
//   - privateKey: The caller's secp256k1 key; may be nil for read-only use
//   - timeout: Request timeout duration (optional, default 30 seconds)
func NewLedgerClient(baseURL string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *LedgerClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &LedgerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: clientTimeout},
		now:        time.Now,
	}
}

// Caller returns the principal the client signs as.
func (c *LedgerClient) Caller() (interfaces.Principal, error) {
	if c.privateKey == nil {
		return interfaces.Principal{}, errors.New("client has no private key")
	}
	return interfaces.NewPrincipalFromAddress(crypto.PubkeyToAddress(c.privateKey.PublicKey)), nil
}

func (c *LedgerClient) RegisterResearcher(ctx context.Context, institution string, token interfaces.Principal) (*interfaces.Researcher, error) {
	var resp api.ResearcherResponse
	err := c.post(ctx, "/api/v1/researchers", api.RegisterResearcherRequest{
		Institution: institution,
		Token:       token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Researcher, nil
}

func (c *LedgerClient) SubmitGenomeData(ctx context.Context, genomeID, dataHash, genomeType string, token interfaces.Principal) (*interfaces.GenomeSubmission, error) {
	var resp api.SubmissionResponse
	err := c.post(ctx, "/api/v1/submissions", api.SubmitGenomeRequest{
		GenomeID:   genomeID,
		DataHash:   dataHash,
		GenomeType: genomeType,
		Token:      token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Submission, nil
}

func (c *LedgerClient) AddValidator(ctx context.Context, validator interfaces.Principal, weight uint64) (*interfaces.Validator, error) {
	var resp api.ValidatorResponse
	err := c.post(ctx, "/api/v1/validators", api.AddValidatorRequest{
		Validator: validator,
		Weight:    weight,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Validator, nil
}

func (c *LedgerClient) ExportSnapshot(ctx context.Context) (*interfaces.SnapshotReceipt, error) {
	var resp api.SnapshotResponse
	if err := c.post(ctx, "/api/v1/snapshots", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.SnapshotReceipt, nil
}

func (c *LedgerClient) Researcher(ctx context.Context, principal interfaces.Principal) (*interfaces.Researcher, error) {
	var resp api.ResearcherResponse
	if err := c.get(ctx, "/api/v1/researchers/"+principal.String(), &resp); err != nil {
		return nil, err
	}
	return resp.Researcher, nil
}

func (c *LedgerClient) Submission(ctx context.Context, genomeID string) (*interfaces.GenomeSubmission, error) {
	var resp api.SubmissionResponse
	if err := c.get(ctx, "/api/v1/submissions/"+url.PathEscape(genomeID), &resp); err != nil {
		return nil, err
	}
	return resp.Submission, nil
}

func (c *LedgerClient) Validator(ctx context.Context, principal interfaces.Principal) (*interfaces.Validator, error) {
	var resp api.ValidatorResponse
	if err := c.get(ctx, "/api/v1/validators/"+principal.String(), &resp); err != nil {
		return nil, err
	}
	return resp.Validator, nil
}

func (c *LedgerClient) Validators(ctx context.Context) (*api.ValidatorsResponse, error) {
	var resp api.ValidatorsResponse
	if err := c.get(ctx, "/api/v1/validators", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *LedgerClient) Status(ctx context.Context) (*interfaces.Status, error) {
	var resp api.StatusResponse
	if err := c.get(ctx, "/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

func (c *LedgerClient) Events(ctx context.Context, from uint64, limit int) (*api.EventsResponse, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatUint(from, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.EventsResponse
	if err := c.get(ctx, "/api/v1/events?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *LedgerClient) post(ctx context.Context, path string, body any, out any) error {
	if c.privateKey == nil {
		return errors.New("signed request requires a private key")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := CreateSignedRequest(ctx, http.MethodPost, c.baseURL+path, payload, c.privateKey, c.now())
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *LedgerClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *LedgerClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeError rebuilds ledger errors from their wire code and maps 404 to
// interfaces.ErrRecordNotFound.
func decodeError(status int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("request failed with code %d: %s", status, string(body))
	}
	if errResp.Err != 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrorForCode(errResp.Err), errResp.Message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", interfaces.ErrRecordNotFound, errResp.Message)
	}
	return fmt.Errorf("request failed with code %d: %s", status, errResp.Message)
}

// CreateSignedRequest builds a request carrying the authentication headers for privateKey.
func CreateSignedRequest(ctx context.Context, method, reqURL string, body []byte, privateKey *ecdsa.PrivateKey, now time.Time) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := signRequest(req, body, privateKey, now); err != nil {
		return nil, err
	}
	return req, nil
}

// SignRequest adds authentication headers to an existing request. The body is
// read and restored so the request can still be sent.
func SignRequest(req *http.Request, privateKey *ecdsa.PrivateKey, now time.Time) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	return signRequest(req, body, privateKey, now)
}

func signRequest(req *http.Request, body []byte, privateKey *ecdsa.PrivateKey, now time.Time) error {
	timestamp := now.Unix()
	nonce := uuid.NewString()
	hash := api.SigningHash(api.SigningPayload(req.Method, req.URL.Path, timestamp, nonce, body))

	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(api.HeaderCaller, crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	req.Header.Set(api.HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(api.HeaderNonce, nonce)
	req.Header.Set(api.HeaderSignature, hexutil.Encode(signature))
	return nil
}
