package modular

// Ops is a sticky-error accumulator over group and field arithmetic. Proof
// and encryption routines chain many operations; instead of threading an
// error return through every step, they run the whole computation on an Ops
// and check Err once at the end. After the first failure all subsequent
// operations return zero values and the first error is retained.
type Ops struct {
	g   *Group
	err error
}

// Ops returns a fresh operation accumulator for the group.
func (g *Group) Ops() *Ops {
	return &Ops{g: g}
}

// Err returns the first error encountered, or nil.
func (o *Ops) Err() error {
	return o.err
}

func (o *Ops) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}

// Mul returns a*b in the group.
func (o *Ops) Mul(a, b Element) Element {
	if o.err != nil {
		return Element{}
	}
	r, err := a.Mul(b)
	if err != nil {
		o.fail(err)
		return Element{}
	}
	return r
}

// Div returns a/b in the group.
func (o *Ops) Div(a, b Element) Element {
	if o.err != nil {
		return Element{}
	}
	r, err := a.Div(b)
	if err != nil {
		o.fail(err)
		return Element{}
	}
	return r
}

// Exp returns base^e in the group.
func (o *Ops) Exp(base Element, e Scalar) Element {
	if o.err != nil {
		return Element{}
	}
	r, err := base.Exp(e)
	if err != nil {
		o.fail(err)
		return Element{}
	}
	return r
}

// BaseExp returns g^e for the group generator.
func (o *Ops) BaseExp(e Scalar) Element {
	return o.Exp(o.g.Generator(), e)
}

// Prod returns the product of all the given elements, or the group identity
// for an empty list.
func (o *Ops) Prod(es ...Element) Element {
	r := o.g.One()
	for _, e := range es {
		r = o.Mul(r, e)
	}
	return r
}

// Add returns a+b in the exponent field.
func (o *Ops) Add(a, b Scalar) Scalar {
	if o.err != nil {
		return Scalar{}
	}
	r, err := a.Add(b)
	if err != nil {
		o.fail(err)
		return Scalar{}
	}
	return r
}

// Sub returns a-b in the exponent field.
func (o *Ops) Sub(a, b Scalar) Scalar {
	if o.err != nil {
		return Scalar{}
	}
	r, err := a.Sub(b)
	if err != nil {
		o.fail(err)
		return Scalar{}
	}
	return r
}

// MulScalar returns a*b in the exponent field.
func (o *Ops) MulScalar(a, b Scalar) Scalar {
	if o.err != nil {
		return Scalar{}
	}
	r, err := a.Mul(b)
	if err != nil {
		o.fail(err)
		return Scalar{}
	}
	return r
}

// Sum returns the sum of all the given scalars, or zero for an empty list.
func (o *Ops) Sum(ss ...Scalar) Scalar {
	r := o.g.field.Zero()
	for _, s := range ss {
		r = o.Add(r, s)
	}
	return r
}
