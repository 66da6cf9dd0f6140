package aggregator

import (
	"math/big"
	"testing"

	"github.com/aragonzkresearch/rovote/census"
	"github.com/aragonzkresearch/rovote/circuits/membership"
	"github.com/aragonzkresearch/rovote/internal/testutil"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/types"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	qt "github.com/frankban/quicktest"
)

type cubeCircuit struct {
	X frontend.Variable
	Y frontend.Variable `gnark:",public"`
}

func (c *cubeCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.X, c.X, c.X), c.Y)
	return nil
}

func fakeNode(level, height int, keyHash int64, vk groth16.VerifyingKey) *Node {
	nullifiers := make([]types.Digest, 1<<level)
	for i := range nullifiers {
		nullifiers[i] = types.DigestFromUint64s(uint64(i + 1))
	}
	return &Node{
		Level:        level,
		Proof:        groth16.NewProof(ecc.BN254),
		VerifyingKey: vk,
		Nullifiers:   nullifiers,
		CensusHeight: height,
		KeyHash:      big.NewInt(keyHash),
	}
}

func TestCheckShapes(t *testing.T) {
	c := qt.New(t)
	a, err := prover.Compile("cube/a", &cubeCircuit{})
	c.Assert(err, qt.IsNil)
	b, err := prover.Compile("cube/b", &cubeCircuit{})
	c.Assert(err, qt.IsNil)
	vk := a.VerifyingKey

	c.Assert(checkShapes(fakeNode(1, 8, 1, vk), fakeNode(1, 8, 1, vk)), qt.IsNil)

	for name, pair := range map[string][2]*Node{
		"nil node":           {fakeNode(0, 8, 1, vk), nil},
		"different levels":   {fakeNode(0, 8, 1, vk), fakeNode(1, 8, 1, vk)},
		"different heights":  {fakeNode(1, 8, 1, vk), fakeNode(1, 4, 1, vk)},
		"different keyhash":  {fakeNode(1, 8, 1, vk), fakeNode(1, 8, 2, vk)},
		"missing vk":         {fakeNode(1, 8, 1, vk), fakeNode(1, 8, 1, nil)},
		"different vk":       {fakeNode(1, 8, 1, vk), fakeNode(1, 8, 1, b.VerifyingKey)},
		"bad nullifier size": {fakeNode(1, 8, 1, vk), {Level: 1, Proof: groth16.NewProof(ecc.BN254), Nullifiers: make([]types.Digest, 3), CensusHeight: 8, KeyHash: big.NewInt(1), VerifyingKey: vk}},
	} {
		c.Run(name, func(c *qt.C) {
			c.Assert(checkShapes(pair[0], pair[1]), qt.ErrorIs, ErrRecursiveVerificationSetup)
		})
	}
}

func TestAggregateNodesRejectsBeforeProving(t *testing.T) {
	c := qt.New(t)
	engine, err := prover.NewEngine(0)
	c.Assert(err, qt.IsNil)
	a, err := prover.Compile("cube", &cubeCircuit{})
	c.Assert(err, qt.IsNil)
	ctx := Context{ChainID: testutil.ChainID, ProcessID: testutil.ProcessID}

	_, err = AggregateNodes(engine, ctx, fakeNode(0, 3, 1, a.VerifyingKey), fakeNode(0, 2, 1, a.VerifyingKey))
	c.Assert(err, qt.ErrorIs, ErrRecursiveVerificationSetup)

	pkg := &membership.ProofPackage{
		Proof:        groth16.NewProof(ecc.BN254),
		ChainID:      testutil.ChainID,
		ProcessID:    testutil.ProcessID + 1,
		CensusHeight: 3,
	}
	_, _, _, err = Aggregate(engine, testutil.ChainID, testutil.ProcessID, types.Digest{}, pkg, pkg, a.VerifyingKey)
	c.Assert(err, qt.ErrorIs, membership.ErrPublicInputMismatch)

	_, _, _, err = Aggregate(engine, testutil.ChainID, testutil.ProcessID+1, types.Digest{}, pkg, nil, a.VerifyingKey)
	c.Assert(err, qt.ErrorIs, ErrRecursiveVerificationSetup)
}

func TestAggregateDifferentCensusHeights(t *testing.T) {
	c := qt.New(t)
	engine, err := prover.NewEngine(0)
	c.Assert(err, qt.IsNil)
	a, err := prover.Compile("cube", &cubeCircuit{})
	c.Assert(err, qt.IsNil)
	_, tree8 := testutil.NewCensus(t, 8)
	_, tree4 := testutil.NewCensus(t, 4)

	pkg := func(tree *census.Tree, nullifier uint64) *membership.ProofPackage {
		return &membership.ProofPackage{
			Proof:        groth16.NewProof(ecc.BN254),
			Nullifier:    types.DigestFromUint64s(nullifier),
			ChainID:      testutil.ChainID,
			ProcessID:    testutil.ProcessID,
			CensusRoot:   tree.Root(),
			CensusHeight: tree.Height(),
		}
	}
	// the second proof also disagrees on the root, the shape is reported
	_, _, _, err = Aggregate(engine, testutil.ChainID, testutil.ProcessID, tree8.Root(),
		pkg(tree8, 1), pkg(tree4, 2), a.VerifyingKey)
	c.Assert(err, qt.ErrorIs, ErrRecursiveVerificationSetup)
	c.Assert(err, qt.Not(qt.ErrorIs), membership.ErrPublicInputMismatch)

	_, _, _, err = Aggregate(engine, testutil.ChainID, testutil.ProcessID, tree4.Root(),
		pkg(tree4, 1), pkg(tree8, 2), a.VerifyingKey)
	c.Assert(err, qt.ErrorIs, ErrRecursiveVerificationSetup)
}

func TestVerifyNodeNonCanonicalNullifier(t *testing.T) {
	c := qt.New(t)
	a, err := prover.Compile("cube", &cubeCircuit{})
	c.Assert(err, qt.IsNil)
	node := fakeNode(1, 2, 1, a.VerifyingKey)
	elems := node.Nullifiers[1].BigInts()
	elems[0].Add(elems[0], ecc.BN254.ScalarField())
	node.Nullifiers[1] = types.NewDigest(elems...)

	err = VerifyNode(Context{ChainID: testutil.ChainID, ProcessID: testutil.ProcessID}, node)
	c.Assert(err, qt.ErrorIs, ErrProofInvalid)
	c.Assert(err, qt.ErrorIs, types.ErrDigestNotInField)
}

func TestAggregateMembershipProofs(t *testing.T) {
	testutil.SkipIfNoCircuitTests(t)
	c := qt.New(t)

	voters, tree := testutil.NewCensus(t, testutil.CensusSize)
	engine, err := prover.NewEngine(0)
	c.Assert(err, qt.IsNil)

	pkg0, vk, err := membership.ProveVoter(engine, tree, voters[84], testutil.ChainID, testutil.ProcessID)
	c.Assert(err, qt.IsNil)
	pkg1, _, err := membership.ProveVoter(engine, tree, voters[101], testutil.ChainID, testutil.ProcessID)
	c.Assert(err, qt.IsNil)

	n0, n1, node, err := Aggregate(engine, testutil.ChainID, testutil.ProcessID, tree.Root(), pkg0, pkg1, vk)
	c.Assert(err, qt.IsNil)
	expected0, err := voters[84].Nullifier(testutil.ChainID, testutil.ProcessID)
	c.Assert(err, qt.IsNil)
	expected1, err := voters[101].Nullifier(testutil.ChainID, testutil.ProcessID)
	c.Assert(err, qt.IsNil)
	c.Assert(n0.Equal(expected0), qt.IsTrue)
	c.Assert(n1.Equal(expected1), qt.IsTrue)
	c.Assert(node.Level, qt.Equals, 1)
	c.Assert(node.Nullifiers, qt.HasLen, 2)

	ctx := Context{ChainID: testutil.ChainID, ProcessID: testutil.ProcessID, CensusRoot: tree.Root()}
	c.Assert(VerifyNode(ctx, node), qt.IsNil)

	c.Run("wrong process", func(c *qt.C) {
		wrong := ctx
		wrong.ProcessID++
		c.Assert(VerifyNode(wrong, node), qt.ErrorIs, ErrProofInvalid)
	})

	c.Run("swapped nullifiers", func(c *qt.C) {
		swapped := *node
		swapped.Nullifiers = []types.Digest{node.Nullifiers[1], node.Nullifiers[0]}
		c.Assert(VerifyNode(ctx, &swapped), qt.ErrorIs, ErrProofInvalid)
	})

	c.Run("wrong key hash", func(c *qt.C) {
		other := *node
		other.KeyHash = new(big.Int).Add(node.KeyHash, big.NewInt(1))
		c.Assert(VerifyNode(ctx, &other), qt.ErrorIs, ErrProofInvalid)
	})

	c.Run("mixed levels", func(c *qt.C) {
		leaf, err := FromMembership(pkg0, vk)
		c.Assert(err, qt.IsNil)
		_, err = AggregateNodes(engine, ctx, node, leaf)
		c.Assert(err, qt.ErrorIs, ErrRecursiveVerificationSetup)
	})
}

func TestAggregateTwoLevels(t *testing.T) {
	testutil.SkipIfNoCircuitTests(t)
	c := qt.New(t)

	voters, tree := testutil.NewCensus(t, 4)
	engine, err := prover.NewEngine(0)
	c.Assert(err, qt.IsNil)
	ctx := Context{ChainID: testutil.ChainID, ProcessID: testutil.ProcessID, CensusRoot: tree.Root()}

	leaves := make([]*Node, len(voters))
	for i, v := range voters {
		pkg, vk, err := membership.ProveVoter(engine, tree, v, testutil.ChainID, testutil.ProcessID)
		c.Assert(err, qt.IsNil)
		leaves[i], err = FromMembership(pkg, vk)
		c.Assert(err, qt.IsNil)
	}
	left, err := AggregateNodes(engine, ctx, leaves[0], leaves[1])
	c.Assert(err, qt.IsNil)
	right, err := AggregateNodes(engine, ctx, leaves[2], leaves[3])
	c.Assert(err, qt.IsNil)
	root, err := AggregateNodes(engine, ctx, left, right)
	c.Assert(err, qt.IsNil)
	c.Assert(root.Level, qt.Equals, 2)
	c.Assert(VerifyNode(ctx, root), qt.IsNil)
	for i, v := range voters {
		nf, err := v.Nullifier(testutil.ChainID, testutil.ProcessID)
		c.Assert(err, qt.IsNil)
		c.Assert(root.Nullifiers[i].Equal(nf), qt.IsTrue)
	}
}
