package ballot

import (
	"github.com/voteguard/voteguard-node/election"
	"github.com/voteguard/voteguard-node/log"
	"github.com/voteguard/voteguard-node/prevoting"
)

// Verify re-checks every proof of the encrypted ballot against the
// pre-voting data: per-option disjunctive proofs, per-contest
// selection-limit proofs, the chaining policy and the confirmation code.
// It returns false, never panics, on any failed check: verification runs
// routinely on adversarial input from the bulletin board.
func (b *Encrypted) Verify(pvd *prevoting.PreVotingData) bool {
	if b == nil || pvd == nil {
		return false
	}
	style, err := pvd.Manifest.BallotStyle(b.BallotStyleIndex)
	if err != nil {
		return false
	}
	key, err := pvd.JointKeyElement()
	if err != nil {
		return false
	}
	g := pvd.Group()
	f := g.Field()
	hE := pvd.ExtendedBaseHash

	if len(b.Contests) != len(style.Contests) {
		return false
	}
	for i, enc := range b.Contests {
		if enc == nil || enc.ContestIndex != style.Contests[i] {
			return false
		}
		contest, err := pvd.Manifest.Contest(enc.ContestIndex)
		if err != nil {
			return false
		}
		if len(enc.Selections) != len(contest.Options) ||
			len(enc.SelectionProofs) != len(contest.Options) {
			return false
		}

		o := g.Ops()
		aggAlpha := g.One()
		aggBeta := g.One()
		for option, ct := range enc.Selections {
			alpha, beta, err := ct.Elements(g)
			if err != nil {
				return false
			}
			if !enc.SelectionProofs[option].Verify(g, selectionContext(hE, enc.ContestIndex, uint32(option+1)), key, alpha, beta) {
				log.Debugw("ballot selection proof failed",
					"contest", enc.ContestIndex, "option", option+1)
				return false
			}
			aggAlpha = o.Mul(aggAlpha, alpha)
			aggBeta = o.Mul(aggBeta, beta)
		}

		limit := f.ScalarUint64(uint64(contest.SelectionLimit))
		x2 := o.Div(aggBeta, o.BaseExp(limit))
		if o.Err() != nil {
			return false
		}
		if !enc.LimitProof.Verify(g, limitContext(hE, enc.ContestIndex), key, aggAlpha, x2) {
			log.Debugw("ballot limit proof failed", "contest", enc.ContestIndex)
			return false
		}
	}

	switch pvd.Parameters.Varying.BallotChaining {
	case election.ChainingProhibited:
		if len(b.ChainField) > 0 {
			return false
		}
	case election.ChainingRequired:
		if len(b.ChainField) == 0 {
			return false
		}
	case election.ChainingAllowed:
		// A chain field is optional; when present it is covered by the
		// confirmation code below.
	default:
		return false
	}

	return b.ConfirmationCode.Equal(confirmationCode(hE, b.DeviceID, b.ChainField, b.Contests))
}

// VerifyChain checks that this ballot correctly extends the device chain:
// its chain field must equal the previous ballot's confirmation code, or
// the device baseline when it is the device's first ballot. Only
// meaningful when chaining is allowed or required.
func (b *Encrypted) VerifyChain(pvd *prevoting.PreVotingData, previousCode []byte) bool {
	if pvd.Parameters.Varying.BallotChaining == election.ChainingProhibited {
		return len(b.ChainField) == 0
	}
	want := previousCode
	if len(want) == 0 {
		want = chainBaseline(pvd.ExtendedBaseHash, b.DeviceID)
	}
	return b.ChainField.Equal(want)
}
