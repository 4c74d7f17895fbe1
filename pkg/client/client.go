// Package client is a typed HTTP client for the registry API. The CLI and
// integration tooling use it instead of hand-rolling requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PetJs/Soroban-Registry/pkg/audit"
	"github.com/PetJs/Soroban-Registry/pkg/multisig"
	"github.com/PetJs/Soroban-Registry/pkg/registry"
)

const defaultTimeout = 30 * time.Second

// APIError is a decoded RFC 7807 problem response.
type APIError struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	Type    string `json:"type,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Title)
}

// Client talks to a registry server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithToken sets a bearer token sent on every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// do sends one request and decodes the response into out when out is
// non-nil. Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeProblem(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeProblem turns an error response into an *APIError. Responses that
// are not problem documents still carry the status code.
func decodeProblem(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, apiErr)
	}
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}

// PolicyInput is the create-policy request payload.
type PolicyInput struct {
	Name          string   `json:"name"`
	Signers       []string `json:"signers"`
	Threshold     int      `json:"threshold"`
	ExpirySeconds int64    `json:"expiry_secs,omitempty"`
	CreatedBy     string   `json:"created_by"`
}

// CreatePolicy creates a signing policy.
func (c *Client) CreatePolicy(ctx context.Context, in PolicyInput) (*multisig.Policy, error) {
	var policy multisig.Policy
	if err := c.do(ctx, http.MethodPost, "/api/v1/multisig/policies", in, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// GetPolicy fetches a policy by ID.
func (c *Client) GetPolicy(ctx context.Context, id string) (*multisig.Policy, error) {
	var policy multisig.Policy
	if err := c.do(ctx, http.MethodGet, "/api/v1/multisig/policies/"+url.PathEscape(id), nil, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ListPolicies returns policies, newest first.
func (c *Client) ListPolicies(ctx context.Context, limit int) ([]*multisig.Policy, error) {
	var policies []*multisig.Policy
	if err := c.do(ctx, http.MethodGet, "/api/v1/multisig/policies"+limitQuery(limit), nil, &policies); err != nil {
		return nil, err
	}
	return policies, nil
}

// ProposalInput is the create-proposal request payload.
type ProposalInput struct {
	PolicyID     string `json:"policy_id"`
	ContractName string `json:"contract_name"`
	ContractID   string `json:"contract_id"`
	WasmHash     string `json:"wasm_hash"`
	Network      string `json:"network,omitempty"`
	Proposer     string `json:"proposer"`
	Description  string `json:"description,omitempty"`
}

// CreateProposal opens a deployment proposal under a policy.
func (c *Client) CreateProposal(ctx context.Context, in ProposalInput) (*multisig.Proposal, error) {
	var proposal multisig.Proposal
	if err := c.do(ctx, http.MethodPost, "/api/v1/multisig/proposals", in, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetProposal fetches a proposal by ID.
func (c *Client) GetProposal(ctx context.Context, id string) (*multisig.Proposal, error) {
	var proposal multisig.Proposal
	if err := c.do(ctx, http.MethodGet, "/api/v1/multisig/proposals/"+url.PathEscape(id), nil, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListProposals returns proposals, optionally filtered by status.
func (c *Client) ListProposals(ctx context.Context, status string, limit int) ([]*multisig.Proposal, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/multisig/proposals"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var proposals []*multisig.Proposal
	if err := c.do(ctx, http.MethodGet, path, nil, &proposals); err != nil {
		return nil, err
	}
	return proposals, nil
}

// Sign records a signer's approval on a proposal.
func (c *Client) Sign(ctx context.Context, proposalID, signer, signatureData string) (*multisig.Proposal, error) {
	in := map[string]string{"signer": signer}
	if signatureData != "" {
		in["signature_data"] = signatureData
	}
	var proposal multisig.Proposal
	path := "/api/v1/multisig/proposals/" + url.PathEscape(proposalID) + "/signatures"
	if err := c.do(ctx, http.MethodPost, path, in, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Execute runs an approved proposal's deployment.
func (c *Client) Execute(ctx context.Context, proposalID string) (*multisig.ExecutionResult, error) {
	var result multisig.ExecutionResult
	path := "/api/v1/multisig/proposals/" + url.PathEscape(proposalID) + "/execute"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Publish registers a contract version.
func (c *Client) Publish(ctx context.Context, in registry.PublishInput) (*registry.ContractRecord, error) {
	var rec registry.ContractRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/contracts", in, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetContract fetches the latest version of a contract.
func (c *Client) GetContract(ctx context.Context, contractID string) (*registry.ContractRecord, error) {
	var rec registry.ContractRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/contracts/"+url.PathEscape(contractID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ContractVersions returns all published versions of a contract.
func (c *Client) ContractVersions(ctx context.Context, contractID string) ([]*registry.ContractRecord, error) {
	var recs []*registry.ContractRecord
	path := "/api/v1/contracts/" + url.PathEscape(contractID) + "/versions"
	if err := c.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// ListContracts returns recent contracts.
func (c *Client) ListContracts(ctx context.Context, limit int) ([]*registry.ContractRecord, error) {
	var recs []*registry.ContractRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/contracts"+limitQuery(limit), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Search queries contracts by text, category and verification state.
func (c *Client) Search(ctx context.Context, in registry.SearchQuery) ([]*registry.ContractRecord, error) {
	q := url.Values{}
	if in.Query != "" {
		q.Set("query", in.Query)
	}
	if in.Category != "" {
		q.Set("category", in.Category)
	}
	if in.VerifiedOnly {
		q.Set("verified", "true")
	}
	if in.Limit > 0 {
		q.Set("limit", strconv.Itoa(in.Limit))
	}
	var recs []*registry.ContractRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/contracts?"+q.Encode(), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// CreatePatch registers an emergency patch.
func (c *Client) CreatePatch(ctx context.Context, in registry.PatchInput) (*registry.PatchRecord, error) {
	var patch registry.PatchRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/patches", in, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// GetPatch fetches a patch by ID.
func (c *Client) GetPatch(ctx context.Context, id string) (*registry.PatchRecord, error) {
	var patch registry.PatchRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/patches/"+url.PathEscape(id), nil, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// ListPatches returns patches, newest first.
func (c *Client) ListPatches(ctx context.Context, limit int) ([]*registry.PatchRecord, error) {
	var patches []*registry.PatchRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/patches"+limitQuery(limit), nil, &patches); err != nil {
		return nil, err
	}
	return patches, nil
}

// ApplyPatch records a patch application against a contract.
func (c *Client) ApplyPatch(ctx context.Context, patchID, contractID string) (*registry.PatchApplication, error) {
	var app registry.PatchApplication
	path := "/api/v1/patches/" + url.PathEscape(patchID) + "/apply"
	in := map[string]string{"contract_id": contractID}
	if err := c.do(ctx, http.MethodPost, path, in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// AuditPage is one page of the audit log, newest entries first.
type AuditPage struct {
	Head    string        `json:"head"`
	Length  int           `json:"length"`
	Entries []audit.Entry `json:"entries"`
}

// AuditLog fetches recent audit entries.
func (c *Client) AuditLog(ctx context.Context, limit int) (*AuditPage, error) {
	var page AuditPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/audit"+limitQuery(limit), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AuditVerdict is the result of an audit chain verification.
type AuditVerdict struct {
	Valid  bool   `json:"valid"`
	Detail string `json:"detail"`
}

// AuditVerify asks the server to re-walk its audit hash chain.
func (c *Client) AuditVerify(ctx context.Context) (*AuditVerdict, error) {
	var verdict AuditVerdict
	if err := c.do(ctx, http.MethodGet, "/api/v1/audit/verify", nil, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Ready checks the readiness endpoint.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?limit=" + strconv.Itoa(limit)
}
