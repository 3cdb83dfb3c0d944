// Package modular implements the big-integer arithmetic layer the election
// protocol is built on: a prime-order multiplicative subgroup mod p together
// with its exponent field mod q. Elements carry a reference to the field or
// group they belong to, so mixing values from different parameter sets fails
// with ErrFieldMismatch instead of silently producing wrong results.
package modular

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// ErrFieldMismatch is returned when two elements from different parameter
// sets (different moduli) are combined.
var ErrFieldMismatch = errors.New("modular: field mismatch")

// Field is the exponent field Z_q.
type Field struct {
	order *big.Int // q
}

// NewField creates a field of the given prime order.
func NewField(q *big.Int) *Field {
	return &Field{order: new(big.Int).Set(q)}
}

// Order returns the field order q.
func (f *Field) Order() *big.Int {
	return new(big.Int).Set(f.order)
}

// Group is a multiplicative subgroup of order q inside Z_p^*, with a fixed
// generator g of order q.
type Group struct {
	modulus   *big.Int // p
	generator *big.Int // g
	field     *Field   // exponents mod q
}

// NewGroup creates a group from the modulus p, subgroup order q and
// generator g. It does not verify primality; parameter sets are expected to
// come from a published specification.
func NewGroup(p, q, g *big.Int) *Group {
	return &Group{
		modulus:   new(big.Int).Set(p),
		generator: new(big.Int).Set(g),
		field:     NewField(q),
	}
}

// Modulus returns the group modulus p.
func (g *Group) Modulus() *big.Int {
	return new(big.Int).Set(g.modulus)
}

// Field returns the exponent field of the group.
func (g *Group) Field() *Field {
	return g.field
}

// Generator returns the subgroup generator as a group element.
func (g *Group) Generator() Element {
	return Element{v: new(big.Int).Set(g.generator), g: g}
}

// sameField reports whether two fields have the same order. Pointer equality
// is the common fast path; value comparison covers independently constructed
// fields with identical parameters.
func sameField(a, b *Field) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.order.Cmp(b.order) == 0
}

func sameGroup(a, b *Group) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil &&
		a.modulus.Cmp(b.modulus) == 0 &&
		a.generator.Cmp(b.generator) == 0 &&
		sameField(a.field, b.field)
}

// Scalar is an element of the exponent field Z_q.
type Scalar struct {
	v *big.Int
	f *Field
}

// Scalar reduces x mod q and returns it as a field element.
func (f *Field) Scalar(x *big.Int) Scalar {
	return Scalar{v: new(big.Int).Mod(x, f.order), f: f}
}

// ScalarUint64 returns the field element for the given small integer.
func (f *Field) ScalarUint64(x uint64) Scalar {
	return f.Scalar(new(big.Int).SetUint64(x))
}

// Zero returns the additive identity of the field.
func (f *Field) Zero() Scalar {
	return Scalar{v: new(big.Int), f: f}
}

// One returns the multiplicative identity of the field.
func (f *Field) One() Scalar {
	return Scalar{v: big.NewInt(1), f: f}
}

// RandomScalar draws a uniform field element from the given randomness
// source. The protocol never uses ambient randomness; callers supply their
// own csprng.
func (f *Field) RandomScalar(rng io.Reader) (Scalar, error) {
	v, err := randInt(rng, f.order)
	if err != nil {
		return Scalar{}, fmt.Errorf("draw field element: %w", err)
	}
	return Scalar{v: v, f: f}, nil
}

// BigInt returns a copy of the scalar value.
func (s Scalar) BigInt() *big.Int {
	return new(big.Int).Set(s.v)
}

// Field returns the field the scalar belongs to.
func (s Scalar) Field() *Field {
	return s.f
}

// IsZero reports whether the scalar is the additive identity.
func (s Scalar) IsZero() bool {
	return s.v != nil && s.v.Sign() == 0
}

// Equal reports whether two scalars hold the same value in the same field.
func (s Scalar) Equal(o Scalar) bool {
	return sameField(s.f, o.f) && s.v.Cmp(o.v) == 0
}

func (s Scalar) check(o Scalar) error {
	if s.v == nil || o.v == nil {
		return fmt.Errorf("%w: uninitialized scalar", ErrFieldMismatch)
	}
	if !sameField(s.f, o.f) {
		return fmt.Errorf("%w: scalar orders %v vs %v", ErrFieldMismatch, s.f.order, o.f.order)
	}
	return nil
}

// Add returns s+o mod q.
func (s Scalar) Add(o Scalar) (Scalar, error) {
	if err := s.check(o); err != nil {
		return Scalar{}, err
	}
	v := new(big.Int).Add(s.v, o.v)
	v.Mod(v, s.f.order)
	return Scalar{v: v, f: s.f}, nil
}

// Sub returns s-o mod q.
func (s Scalar) Sub(o Scalar) (Scalar, error) {
	if err := s.check(o); err != nil {
		return Scalar{}, err
	}
	v := new(big.Int).Sub(s.v, o.v)
	v.Mod(v, s.f.order)
	return Scalar{v: v, f: s.f}, nil
}

// Mul returns s*o mod q.
func (s Scalar) Mul(o Scalar) (Scalar, error) {
	if err := s.check(o); err != nil {
		return Scalar{}, err
	}
	v := new(big.Int).Mul(s.v, o.v)
	v.Mod(v, s.f.order)
	return Scalar{v: v, f: s.f}, nil
}

// Neg returns -s mod q.
func (s Scalar) Neg() Scalar {
	v := new(big.Int).Neg(s.v)
	v.Mod(v, s.f.order)
	return Scalar{v: v, f: s.f}
}

// Inv returns the multiplicative inverse of s mod q. It fails on zero.
func (s Scalar) Inv() (Scalar, error) {
	v := new(big.Int).ModInverse(s.v, s.f.order)
	if v == nil {
		return Scalar{}, fmt.Errorf("modular: no inverse for %v mod %v", s.v, s.f.order)
	}
	return Scalar{v: v, f: s.f}, nil
}

// Element is an element of the multiplicative subgroup mod p.
type Element struct {
	v *big.Int
	g *Group
}

// Element reduces x mod p and returns it as a group element, without
// checking subgroup membership. Use ValidElement for untrusted input.
func (g *Group) Element(x *big.Int) Element {
	return Element{v: new(big.Int).Mod(x, g.modulus), g: g}
}

// One returns the group identity.
func (g *Group) One() Element {
	return Element{v: big.NewInt(1), g: g}
}

// ValidElement reduces x mod p and checks that the result is a member of the
// order-q subgroup (x != 0 and x^q == 1 mod p). Every group element received
// from a peer or from the bulletin board must pass through this check before
// use.
func (g *Group) ValidElement(x *big.Int) (Element, error) {
	v := new(big.Int).Mod(x, g.modulus)
	if v.Sign() == 0 {
		return Element{}, fmt.Errorf("modular: zero is not a subgroup member")
	}
	t := new(big.Int).Exp(v, g.field.order, g.modulus)
	if t.Cmp(big.NewInt(1)) != 0 {
		return Element{}, fmt.Errorf("modular: %v is not in the order-%v subgroup", v, g.field.order)
	}
	return Element{v: v, g: g}, nil
}

// BigInt returns a copy of the element value.
func (e Element) BigInt() *big.Int {
	return new(big.Int).Set(e.v)
}

// Group returns the group the element belongs to.
func (e Element) Group() *Group {
	return e.g
}

// IsOne reports whether the element is the group identity.
func (e Element) IsOne() bool {
	return e.v != nil && e.v.Cmp(big.NewInt(1)) == 0
}

// Equal reports whether two elements hold the same value in the same group.
func (e Element) Equal(o Element) bool {
	return sameGroup(e.g, o.g) && e.v.Cmp(o.v) == 0
}

func (e Element) check(o Element) error {
	if e.v == nil || o.v == nil {
		return fmt.Errorf("%w: uninitialized element", ErrFieldMismatch)
	}
	if !sameGroup(e.g, o.g) {
		return fmt.Errorf("%w: group moduli %v vs %v", ErrFieldMismatch, e.g.modulus, o.g.modulus)
	}
	return nil
}

// Mul returns e*o mod p.
func (e Element) Mul(o Element) (Element, error) {
	if err := e.check(o); err != nil {
		return Element{}, err
	}
	v := new(big.Int).Mul(e.v, o.v)
	v.Mod(v, e.g.modulus)
	return Element{v: v, g: e.g}, nil
}

// Div returns e/o mod p.
func (e Element) Div(o Element) (Element, error) {
	if err := e.check(o); err != nil {
		return Element{}, err
	}
	inv := new(big.Int).ModInverse(o.v, e.g.modulus)
	if inv == nil {
		return Element{}, fmt.Errorf("modular: no inverse for %v mod %v", o.v, e.g.modulus)
	}
	v := new(big.Int).Mul(e.v, inv)
	v.Mod(v, e.g.modulus)
	return Element{v: v, g: e.g}, nil
}

// Exp returns e^s mod p.
func (e Element) Exp(s Scalar) (Element, error) {
	if e.v == nil || s.v == nil {
		return Element{}, fmt.Errorf("%w: uninitialized operand", ErrFieldMismatch)
	}
	if !sameField(e.g.field, s.f) {
		return Element{}, fmt.Errorf("%w: exponent field does not match group order", ErrFieldMismatch)
	}
	return Element{v: new(big.Int).Exp(e.v, s.v, e.g.modulus), g: e.g}, nil
}

// BaseExp returns g^s mod p for the group generator g.
func (g *Group) BaseExp(s Scalar) (Element, error) {
	return g.Generator().Exp(s)
}

// randInt draws a uniform integer in [0, max) from rng, by rejection
// sampling like crypto/rand.Int but without importing it, so that tests can
// inject deterministic readers.
func randInt(rng io.Reader, max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive max")
	}
	bitLen := max.BitLen()
	byteLen := (bitLen + 7) / 8
	buf := make([]byte, byteLen)
	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, err
		}
		// Clear excess top bits so the candidate has the right bit length.
		if excess := byteLen*8 - bitLen; excess > 0 {
			buf[0] &= 0xff >> excess
		}
		v := new(big.Int).SetBytes(buf)
		if v.Cmp(max) < 0 {
			return v, nil
		}
	}
}
