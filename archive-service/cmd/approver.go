package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// terminalApprover asks on the terminal before each ledger write, the way
// a browser wallet pops up a signature request.
type terminalApprover struct {
	mu   sync.Mutex
	in   *bufio.Reader
	out  io.Writer
	auto bool
}

func newTerminalApprover(in io.Reader, out io.Writer, auto bool) *terminalApprover {
	return &terminalApprover{in: bufio.NewReader(in), out: out, auto: auto}
}

// Approve implements storage.Approver. End of input declines.
func (a *terminalApprover) Approve(ctx context.Context, key string, data []byte) (bool, error) {
	if a.auto {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.out, "Sign write of %d bytes to %s? [y/N] ", len(data), key)
	line, err := a.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading approval: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
