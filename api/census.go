package api

import (
	"errors"
	"net/http"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/types"
)

func censusResponse(tree *census.Tree) *CensusResponse {
	return &CensusResponse{
		ID:     tree.Root().Hex(),
		Root:   tree.Root(),
		Size:   tree.Size(),
		Height: tree.Height(),
	}
}

// newCensus builds a census from the public keys in the body and stores it.
// Importing the same list of keys twice fails with ErrCensusAlreadyExists.
// POST /censuses
func (a *API) newCensus(w http.ResponseWriter, r *http.Request) {
	req := &NewCensusRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	tree, err := a.censusDB.Import(req.PublicKeys)
	switch {
	case errors.Is(err, census.ErrInvalidCensusSize):
		ErrInvalidCensusSize.Withf("got %d public keys", len(req.PublicKeys)).Write(w)
		return
	case errors.Is(err, census.ErrInvalidLeaf):
		ErrInvalidCensusLeaf.WithErr(err).Write(w)
		return
	case errors.Is(err, censusdb.ErrCensusAlreadyExists):
		ErrCensusAlreadyExists.Withf("root %s", tree.Root().Hex()).Write(w)
		return
	case err != nil:
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("census created", "root", tree.Root().Hex(), "size", tree.Size())
	httpWriteJSON(w, censusResponse(tree))
}

// loadCensus loads the census of the root URL parameter, writing the error
// response and returning nil if it cannot.
func (a *API) loadCensus(w http.ResponseWriter, r *http.Request) *census.Tree {
	root, err := censusRootParam(r)
	if err != nil {
		ErrMalformedCensusRoot.WithErr(err).Write(w)
		return nil
	}
	tree, err := a.censusDB.Load(root)
	if err != nil {
		if errors.Is(err, censusdb.ErrCensusNotFound) {
			ErrCensusNotFound.Withf("root %s", root.Hex()).Write(w)
			return nil
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return nil
	}
	return tree
}

// census returns the size and height of a census.
// GET /censuses/{root}
func (a *API) census(w http.ResponseWriter, r *http.Request) {
	tree := a.loadCensus(w, r)
	if tree == nil {
		return
	}
	httpWriteJSON(w, censusResponse(tree))
}

// censusProof returns the inclusion path of the public key given in the key
// query parameter, hex encoded. It is what a voter needs to prove their
// membership.
// GET /censuses/{root}/proof?key=<key>
func (a *API) censusProof(w http.ResponseWriter, r *http.Request) {
	tree := a.loadCensus(w, r)
	if tree == nil {
		return
	}
	key, err := types.DigestFromHex(r.URL.Query().Get(CensusKeyQueryParam))
	if err != nil {
		ErrMalformedParam.Withf("invalid key: %v", err).Write(w)
		return
	}
	index, ok := tree.IndexOf(key)
	if !ok {
		ErrKeyNotInCensus.Withf("key %s", key.Hex()).Write(w)
		return
	}
	siblings, err := tree.PathFor(index)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &CensusProofResponse{
		Root:      tree.Root(),
		PublicKey: key,
		Index:     index,
		Siblings:  siblings,
	})
}
