package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aragonzkresearch/rovote/api"
	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/db/metadb"
	"github.com/aragonzkresearch/rovote/internal/testutil"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/sequencer"
	"github.com/aragonzkresearch/rovote/storage"
	"github.com/aragonzkresearch/rovote/types"
	qt "github.com/frankban/quicktest"
)

func newTestServer(t *testing.T) (*HTTPclient, *prover.Engine) {
	c := qt.New(t)
	database := metadb.NewTest(t)
	cdb, err := censusdb.NewCensusDB(database)
	c.Assert(err, qt.IsNil)
	engine, err := prover.NewEngine(0)
	c.Assert(err, qt.IsNil)
	a, err := api.New(context.Background(), &api.APIConfig{
		ChainID:   testutil.ChainID,
		Storage:   storage.New(database),
		CensusDB:  cdb,
		Sequencer: sequencer.New(engine, 2),
	})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close(context.Background())
	})
	cli, err := New(srv.URL)
	c.Assert(err, qt.IsNil)
	return cli, engine
}

func TestClient(t *testing.T) {
	c := qt.New(t)
	cli, _ := newTestServer(t)
	voters, tree := testutil.NewCensus(t, 4)
	pks := testutil.PublicKeys(voters)

	info, err := cli.Info()
	c.Assert(err, qt.IsNil)
	c.Assert(info.ChainID, qt.Equals, uint64(testutil.ChainID))

	created, err := cli.NewCensus(pks)
	c.Assert(err, qt.IsNil)
	c.Assert(created.Root.Equal(tree.Root()), qt.IsTrue)

	got, err := cli.Census(tree.Root())
	c.Assert(err, qt.IsNil)
	c.Assert(got.Size, qt.Equals, 4)

	proof, err := cli.CensusProof(tree.Root(), pks[2])
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Index, qt.Equals, 2)
	ok, err := census.VerifyPath(tree.Root(), pks[2], proof.Index, proof.Siblings)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	proofs, err := cli.ProcessProofs(testutil.ProcessID)
	c.Assert(err, qt.IsNil)
	c.Assert(proofs.Nullifiers, qt.HasLen, 0)

	_, err = cli.Census(types.DigestFromUint64s(1))
	var apiErr *APIError
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrCensusNotFound.Code)
	c.Assert(apiErr.Status, qt.Equals, http.StatusNotFound)

	_, err = cli.Aggregate(testutil.ProcessID, tree.Root())
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidBatchSize.Code)

	_, err = cli.Aggregation("missing")
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, api.ErrJobNotFound.Code)
}

func TestNewUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := New(url)
	qt.Assert(t, err, qt.IsNotNil)
}
