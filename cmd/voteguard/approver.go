package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Decision is the outcome of asking the operator to approve a publish
// step. Abort is distinct from Reject: a rejected step may be retried
// later, an aborted flow stops immediately.
type Decision int

const (
	Approve Decision = iota
	Reject
	Abort
)

// Approver gates every write to the bulletin board, typically on the
// transaction fee it will cost. Implementations block until the operator
// answers; the flow treats Abort as cancellation between steps.
type Approver interface {
	Approve(ctx context.Context, action string) (Decision, error)
}

// autoApprover approves everything. Used with --yes and in tests.
type autoApprover struct{}

func (autoApprover) Approve(context.Context, string) (Decision, error) {
	return Approve, nil
}

// promptApprover asks on the terminal. Answers: y(es), n(o), a(bort).
type promptApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptApprover(in io.Reader, out io.Writer) *promptApprover {
	return &promptApprover{in: bufio.NewReader(in), out: out}
}

func (p *promptApprover) Approve(ctx context.Context, action string) (Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Abort, err
		}
		fmt.Fprintf(p.out, "%s, proceed? [y/n/a] ", action)
		line, err := p.in.ReadString('\n')
		if err != nil {
			return Abort, fmt.Errorf("read approval: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return Approve, nil
		case "n", "no":
			return Reject, nil
		case "a", "abort":
			return Abort, nil
		}
	}
}
