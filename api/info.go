package api

import (
	"net/http"

	"github.com/aragonzkresearch/rovote/prover"
)

// info returns the chain of the node and the circuits compiled so far, with
// the fingerprint of their verifying keys.
// GET /info
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	resp := &NodeInfo{
		ChainID:  a.chainID,
		Workers:  a.sequencer.Workers,
		Circuits: []CircuitInfo{},
	}
	for _, artifacts := range a.engine().Cached() {
		hash, err := prover.VerifyingKeyHash(artifacts.VerifyingKey)
		if err != nil {
			ErrGenericInternalServerError.WithErr(err).Write(w)
			return
		}
		resp.Circuits = append(resp.Circuits, CircuitInfo{
			Key:                 artifacts.Key,
			Constraints:         artifacts.CCS.GetNbConstraints(),
			VerificationKeyHash: hash,
		})
	}
	httpWriteJSON(w, resp)
}
