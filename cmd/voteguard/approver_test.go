package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPromptApprover(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	// Unrecognized answers re-prompt until a valid one arrives.
	out := &bytes.Buffer{}
	p := newPromptApprover(strings.NewReader("maybe\nYES\n"), out)
	d, err := p.Approve(ctx, "publish result")
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, Approve)
	c.Assert(out.String(), qt.Equals, strings.Repeat("publish result, proceed? [y/n/a] ", 2))

	p = newPromptApprover(strings.NewReader("n\n"), &bytes.Buffer{})
	d, err = p.Approve(ctx, "publish result")
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, Reject)

	p = newPromptApprover(strings.NewReader("abort\n"), &bytes.Buffer{})
	d, err = p.Approve(ctx, "publish result")
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.Equals, Abort)

	// EOF before an answer aborts the flow.
	p = newPromptApprover(strings.NewReader(""), &bytes.Buffer{})
	d, err = p.Approve(ctx, "publish result")
	c.Assert(err, qt.IsNotNil)
	c.Assert(d, qt.Equals, Abort)
}
