package api

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// PingEndpoint is the health check endpoint.
	PingEndpoint = "/ping"
	// InfoEndpoint returns the node and circuits information.
	InfoEndpoint = "/info"

	CensusRootURLParam  = "root"
	CensusKeyQueryParam = "key"
	// CensusesEndpoint creates censuses (POST).
	CensusesEndpoint = "/censuses"
	// CensusEndpoint returns the size and height of a census (GET).
	CensusEndpoint = "/censuses/{" + CensusRootURLParam + "}"
	// CensusProofEndpoint returns the inclusion path of a key (GET).
	CensusProofEndpoint = CensusEndpoint + "/proof"

	ProcessURLParam = "processId"
	// ProofsEndpoint receives membership proofs (POST).
	ProofsEndpoint = "/proofs"
	// ProcessProofsEndpoint lists the nullifiers of a process (GET).
	ProcessProofsEndpoint = "/processes/{" + ProcessURLParam + "}/proofs"

	JobURLParam = "jobId"
	// AggregationsEndpoint starts an aggregation job (POST).
	AggregationsEndpoint = "/aggregations"
	// AggregationEndpoint returns the status of an aggregation job (GET).
	AggregationEndpoint = "/aggregations/{" + JobURLParam + "}"
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
	InfoEndpoint,
}
