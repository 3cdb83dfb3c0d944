package zkp

import (
	"crypto/rand"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/voteguard/voteguard-node/crypto/modular"
	"github.com/voteguard/voteguard-node/types"
)

// testGroup returns the order-11 subgroup of Z_23^* generated by 2.
func testGroup() *modular.Group {
	return modular.NewGroup(big.NewInt(23), big.NewInt(11), big.NewInt(2))
}

func TestSchnorrRoundTrip(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	witness, err := f.RandomScalar(rand.Reader)
	c.Assert(err, qt.IsNil)
	public, err := g.BaseExp(witness)
	c.Assert(err, qt.IsNil)

	ctx := []byte("test context")
	proof, err := ProveSchnorr(rand.Reader, g, ctx, witness, public)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, ctx, public), qt.IsTrue)

	// Wrong context fails.
	c.Assert(proof.Verify(g, []byte("other context"), public), qt.IsFalse)

	// Wrong public value fails.
	other, err := g.BaseExp(f.ScalarUint64(witness.BigInt().Uint64() + 1))
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, ctx, other), qt.IsFalse)
}

func TestSchnorrTamper(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	witness := f.ScalarUint64(7)
	public, err := g.BaseExp(witness)
	c.Assert(err, qt.IsNil)

	ctx := []byte("ctx")
	proof, err := ProveSchnorr(rand.Reader, g, ctx, witness, public)
	c.Assert(err, qt.IsNil)

	tampered := *proof
	tampered.Response = types.FromBigInt(new(big.Int).Add(proof.Response.MathBigInt(), big.NewInt(1)))
	c.Assert(tampered.Verify(g, ctx, public), qt.IsFalse)

	tampered = *proof
	tampered.Commitment = nil
	c.Assert(tampered.Verify(g, ctx, public), qt.IsFalse)

	var nilProof *SchnorrProof
	c.Assert(nilProof.Verify(g, ctx, public), qt.IsFalse)
}

func TestChaumPedersenRoundTrip(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	witness := f.ScalarUint64(5)
	base2, err := g.BaseExp(f.ScalarUint64(3))
	c.Assert(err, qt.IsNil)
	x1, err := g.BaseExp(witness)
	c.Assert(err, qt.IsNil)
	x2, err := base2.Exp(witness)
	c.Assert(err, qt.IsNil)

	ctx := []byte("equality")
	proof, err := ProveEquality(rand.Reader, g, ctx, base2, witness, x1, x2)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, ctx, base2, x1, x2), qt.IsTrue)

	// Mismatched statement fails: x2 with a different exponent.
	badX2, err := base2.Exp(f.ScalarUint64(6))
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, ctx, base2, x1, badX2), qt.IsFalse)

	// Tampered response fails.
	tampered := *proof
	tampered.Response = types.FromBigInt(new(big.Int).Add(proof.Response.MathBigInt(), big.NewInt(1)))
	c.Assert(tampered.Verify(g, ctx, base2, x1, x2), qt.IsFalse)
}

func TestSelectionProof(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	secret := f.ScalarUint64(6)
	key, err := g.BaseExp(secret)
	c.Assert(err, qt.IsNil)

	encrypt := func(sigma uint64, xi modular.Scalar) (modular.Element, modular.Element) {
		o := g.Ops()
		alpha := o.BaseExp(xi)
		beta := o.Mul(o.BaseExp(f.ScalarUint64(sigma)), o.Exp(key, xi))
		c.Assert(o.Err(), qt.IsNil)
		return alpha, beta
	}

	ctx := []byte("selection")
	for sigma := uint8(0); sigma <= 1; sigma++ {
		xi, err := f.RandomScalar(rand.Reader)
		c.Assert(err, qt.IsNil)
		alpha, beta := encrypt(uint64(sigma), xi)

		proof, err := ProveSelection(rand.Reader, g, ctx, key, alpha, beta, xi, sigma)
		c.Assert(err, qt.IsNil)
		c.Assert(proof.Verify(g, ctx, key, alpha, beta), qt.IsTrue,
			qt.Commentf("sigma=%d", sigma))
		c.Assert(proof.Verify(g, []byte("other"), key, alpha, beta), qt.IsFalse)
	}
}

func TestSelectionProofRejectsOutOfRange(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	secret := f.ScalarUint64(6)
	key, err := g.BaseExp(secret)
	c.Assert(err, qt.IsNil)

	xi := f.ScalarUint64(4)
	o := g.Ops()
	alpha := o.BaseExp(xi)
	// Encrypts 2, which is outside {0,1}.
	beta := o.Mul(o.BaseExp(f.ScalarUint64(2)), o.Exp(key, xi))
	c.Assert(o.Err(), qt.IsNil)

	_, err = ProveSelection(rand.Reader, g, []byte("ctx"), key, alpha, beta, xi, 2)
	c.Assert(err, qt.IsNotNil)

	// A proof for a different ciphertext does not transfer.
	goodAlpha := o.BaseExp(xi)
	goodBeta := o.Mul(o.BaseExp(f.ScalarUint64(1)), o.Exp(key, xi))
	c.Assert(o.Err(), qt.IsNil)
	proof, err := ProveSelection(rand.Reader, g, []byte("ctx"), key, goodAlpha, goodBeta, xi, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, []byte("ctx"), key, alpha, beta), qt.IsFalse)
}

func TestSelectionProofTamper(t *testing.T) {
	c := qt.New(t)
	g := testGroup()
	f := g.Field()

	key, err := g.BaseExp(f.ScalarUint64(6))
	c.Assert(err, qt.IsNil)
	xi := f.ScalarUint64(9)
	o := g.Ops()
	alpha := o.BaseExp(xi)
	beta := o.Mul(g.Generator(), o.Exp(key, xi))
	c.Assert(o.Err(), qt.IsNil)

	proof, err := ProveSelection(rand.Reader, g, []byte("ctx"), key, alpha, beta, xi, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Verify(g, []byte("ctx"), key, alpha, beta), qt.IsTrue)

	tampered := *proof
	tampered.Challenge0 = types.FromBigInt(new(big.Int).Add(proof.Challenge0.MathBigInt(), big.NewInt(1)))
	c.Assert(tampered.Verify(g, []byte("ctx"), key, alpha, beta), qt.IsFalse)

	tampered = *proof
	tampered.Response1 = nil
	c.Assert(tampered.Verify(g, []byte("ctx"), key, alpha, beta), qt.IsFalse)
}
