//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam         = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedProcessID     = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed process ID")}
	ErrMalformedCensusRoot    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed census root")}
	ErrMalformedNullifier     = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrMalformedProof         = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proof")}
	ErrInvalidCensusSize      = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid census size")}
	ErrCensusNotFound         = Error{Code: 40009, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("census not found")}
	ErrCensusAlreadyExists    = Error{Code: 40010, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("census already exists")}
	ErrKeyNotInCensus         = Error{Code: 40011, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("key not found in census")}
	ErrInvalidChainID         = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("not supported chain Id")}
	ErrInvalidMembershipProof = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid membership proof")}
	ErrNullifierAlreadyUsed   = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already used in this process")}
	ErrInvalidBatchSize       = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("number of proofs must be a power of two")}
	ErrJobNotFound            = Error{Code: 40016, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("aggregation job not found")}
	ErrInvalidCensusLeaf      = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid census public key")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrProverUnavailable          = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("prover unavailable")}
)
