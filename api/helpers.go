package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/go-chi/chi/v5"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeBody decodes the JSON body of the request into v, writing
// ErrMalformedBody and returning false if it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// censusRootParam parses the census root URL parameter, an hex encoded
// digest.
func censusRootParam(r *http.Request) (types.Digest, error) {
	return types.DigestFromHex(chi.URLParam(r, CensusRootURLParam))
}

// processIDParam parses the process ID URL parameter, a decimal number.
func processIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, ProcessURLParam), 10, 64)
}
