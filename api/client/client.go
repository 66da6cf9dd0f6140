// Package client is an HTTP client of the node API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/aragonzkresearch/rovote/api"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
)

const (
	// DefaultRetries is the number of attempts when the server cannot be
	// reached.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Minute

	retrySleep = 500 * time.Millisecond
)

// APIError is returned when the node answers with a status other than 200.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (status %d): %s", e.Code, e.Status, e.Message)
}

// HTTPclient is the node API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
}

// New creates a client of the API at host and pings it.
func New(host string) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	c := &HTTPclient{
		c:       &http.Client{Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
	}
	log.Debugw("http client created", "host", hostURL.String())
	if err := c.do(http.MethodGet, nil, nil, nil, api.PingEndpoint); err != nil {
		return nil, err
	}
	return c, nil
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// Request performs a raw request to the endpoint at urlPath and returns the
// response body and status. params are query parameters given as key and
// value pairs.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}
	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i+1 < len(params); i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}
	log.Debugw("http client request", "type", method, "url", u.String(), "bytes", len(body))

	var lastErr error
	for i := 1; i <= max(c.retries, 1); i++ {
		req, err := http.NewRequest(method, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
		}
		resp, err := c.c.Do(req)
		if err != nil {
			lastErr = err
			log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
			time.Sleep(retrySleep)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}
		return data, resp.StatusCode, nil
	}
	return nil, 0, fmt.Errorf("http request failed after %d retries: %w", c.retries, lastErr)
}

// do performs the request and decodes a successful response into out, if
// not nil. Other statuses are returned as *APIError.
func (c *HTTPclient) do(method string, jsonBody any, params []string, out any, urlPath ...string) error {
	data, status, err := c.Request(method, jsonBody, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &APIError{Status: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Info returns the information of the node.
func (c *HTTPclient) Info() (*api.NodeInfo, error) {
	info := &api.NodeInfo{}
	return info, c.do(http.MethodGet, nil, nil, info, api.InfoEndpoint)
}

// NewCensus creates a census of the public keys.
func (c *HTTPclient) NewCensus(publicKeys []types.Digest) (*api.CensusResponse, error) {
	resp := &api.CensusResponse{}
	return resp, c.do(http.MethodPost, &api.NewCensusRequest{PublicKeys: publicKeys}, nil, resp, api.CensusesEndpoint)
}

// Census returns the description of the census with the given root.
func (c *HTTPclient) Census(root types.Digest) (*api.CensusResponse, error) {
	resp := &api.CensusResponse{}
	return resp, c.do(http.MethodGet, nil, nil, resp,
		api.EndpointWithParam(api.CensusEndpoint, api.CensusRootURLParam, root.Hex()))
}

// CensusProof returns the inclusion path of the public key in the census.
func (c *HTTPclient) CensusProof(root, publicKey types.Digest) (*api.CensusProofResponse, error) {
	resp := &api.CensusProofResponse{}
	return resp, c.do(http.MethodGet, nil, []string{api.CensusKeyQueryParam, publicKey.Hex()}, resp,
		api.EndpointWithParam(api.CensusProofEndpoint, api.CensusRootURLParam, root.Hex()))
}

// SubmitProof sends a membership proof package to the node.
func (c *HTTPclient) SubmitProof(pkg *membership.ProofPackage) (*api.MembershipProofResponse, error) {
	proof, err := prover.EncodeProof(pkg.Proof)
	if err != nil {
		return nil, err
	}
	resp := &api.MembershipProofResponse{}
	return resp, c.do(http.MethodPost, &api.MembershipProof{
		ChainID:    pkg.ChainID,
		ProcessID:  pkg.ProcessID,
		CensusRoot: pkg.CensusRoot,
		Nullifier:  pkg.Nullifier,
		Proof:      proof,
	}, nil, resp, api.ProofsEndpoint)
}

// ProcessProofs lists the nullifiers accepted for a process.
func (c *HTTPclient) ProcessProofs(processID uint64) (*api.ProcessProofsResponse, error) {
	resp := &api.ProcessProofsResponse{}
	return resp, c.do(http.MethodGet, nil, nil, resp,
		api.EndpointWithParam(api.ProcessProofsEndpoint, api.ProcessURLParam, strconv.FormatUint(processID, 10)))
}

// Aggregate starts the aggregation of the proofs of a process and census.
func (c *HTTPclient) Aggregate(processID uint64, root types.Digest) (*api.AggregationJobResponse, error) {
	resp := &api.AggregationJobResponse{}
	return resp, c.do(http.MethodPost, &api.AggregationRequest{ProcessID: processID, CensusRoot: root}, nil, resp,
		api.AggregationsEndpoint)
}

// Aggregation returns the state of an aggregation job.
func (c *HTTPclient) Aggregation(jobID string) (*api.AggregationJobResponse, error) {
	resp := &api.AggregationJobResponse{}
	return resp, c.do(http.MethodGet, nil, nil, resp,
		api.EndpointWithParam(api.AggregationEndpoint, api.JobURLParam, jobID))
}

// WaitAggregation polls the aggregation job every interval until it is no
// longer running or the timeout expires.
func (c *HTTPclient) WaitAggregation(jobID string, interval, timeout time.Duration) (*api.AggregationJobResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := c.Aggregation(jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != api.JobStatusRunning {
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("aggregation job %s still running after %s", jobID, timeout)
		}
		time.Sleep(interval)
	}
}
