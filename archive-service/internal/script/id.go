package script

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

const (
	idAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLen = 7
)

// NewID builds an id of the form "<unix-millis>-<7 base-36 chars>" with the
// suffix drawn from r.
func NewID(now time.Time, r io.Reader) (string, error) {
	return formatID(now.UnixMilli(), r)
}

func formatID(millis int64, r io.Reader) (string, error) {
	suffix, err := randomSuffix(r)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(millis, 10) + "-" + suffix, nil
}

func randomSuffix(r io.Reader) (string, error) {
	out := make([]byte, 0, idSuffixLen)
	buf := make([]byte, idSuffixLen*2)
	for len(out) < idSuffixLen {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("reading random suffix: %w", err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256
			if b >= 252 {
				continue
			}
			out = append(out, idAlphabet[b%36])
			if len(out) == idSuffixLen {
				break
			}
		}
	}
	return string(out), nil
}

// IDGenerator hands out ids whose timestamp part strictly increases within
// the process, even when the clock stalls or steps back. Uniqueness across
// processes rests on the random suffix (about 36 bits).
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
	rand io.Reader
}

// NewIDGenerator returns a generator backed by the wall clock and
// crypto/rand.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now, rand: rand.Reader}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() (string, error) {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return formatID(ms, g.rand)
}
