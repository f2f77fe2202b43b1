package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Submitter runs a request and returns its reply.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Reply, error)
}

// Console reads one command per line from in and writes replies to out.
type Console struct {
	submit Submitter
	user   string
	in     io.Reader
	out    io.Writer
}

// NewConsole creates a console issuing commands as user.
func NewConsole(s Submitter, user string, in io.Reader, out io.Writer) *Console {
	return &Console{submit: s, user: user, in: in, out: out}
}

// Run processes lines until in is exhausted, "quit" is entered, or ctx is
// cancelled. Cancellation is noticed between lines.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Commands: ping, join primary|<target>, leave, volume <0..2>, devices, quit")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		req, ok := Parse(c.user, scanner.Text())
		if !ok {
			continue
		}
		if req.Name == "quit" || req.Name == "exit" {
			return nil
		}

		reply, err := c.submit.Submit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, reply.Text)
	}
	return scanner.Err()
}
