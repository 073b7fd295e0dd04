// Package spiffe resolves workload identities from the SPIFFE Workload API
// and from mTLS peer certificates. A SPIFFE ID doubles as the account of a
// script owner when the archive runs as a workload rather than for a person.
package spiffe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/spiffe/go-spiffe/v2/svid/x509svid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"

	"github.com/redhat-et/script-archive/pkg/logger"
)

// Config holds SPIFFE-related configuration
type Config struct {
	SocketPath string
	MockMode   bool
	MockID     string
}

// WorkloadClient fetches and caches this process's SPIFFE ID.
type WorkloadClient struct {
	config Config
	log    *logger.Logger

	mu sync.RWMutex
	id string
}

// NewWorkloadClient creates a new workload client
func NewWorkloadClient(cfg Config, log *logger.Logger) *WorkloadClient {
	return &WorkloadClient{config: cfg, log: log}
}

// socketAddr returns the Workload API address in the form go-spiffe expects.
func (c *WorkloadClient) socketAddr() string {
	if strings.Contains(c.config.SocketPath, "://") {
		return c.config.SocketPath
	}
	return "unix://" + c.config.SocketPath
}

// FetchIdentity fetches the workload's X.509 SVID from the SPIRE agent and
// remembers its SPIFFE ID.
func (c *WorkloadClient) FetchIdentity(ctx context.Context) (string, error) {
	if c.config.MockMode {
		if c.config.MockID == "" {
			return "", fmt.Errorf("mock mode: no SPIFFE ID configured")
		}
		c.log.Info("Mock mode: skipping SPIRE agent connection", "spiffe_id", c.config.MockID)
		c.setID(c.config.MockID)
		return c.config.MockID, nil
	}

	c.log.Info("Connecting to SPIRE agent", "socket", c.config.SocketPath)
	svid, err := workloadapi.FetchX509SVID(ctx, workloadapi.WithAddr(c.socketAddr()))
	if err != nil {
		return "", fmt.Errorf("failed to fetch X.509 SVID: %w", err)
	}

	id := svid.ID.String()
	c.log.Info("Fetched workload identity", "spiffe_id", id, "expires", svid.Certificates[0].NotAfter)
	c.setID(id)
	return id, nil
}

func (c *WorkloadClient) setID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// Account returns the last fetched SPIFFE ID, or "" before FetchIdentity
// has succeeded.
func (c *WorkloadClient) Account(context.Context) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// PeerID returns the SPIFFE ID of the mTLS peer, or "" when the request
// carries no client certificate with a SPIFFE URI SAN.
func PeerID(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	id, err := x509svid.IDFromCert(r.TLS.PeerCertificates[0])
	if err != nil {
		return ""
	}
	return id.String()
}
