package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker performs TCP-based synthetic checks
type TCPChecker struct {
	// Address is the TCP address to connect to (e.g., "svc.example.com:443")
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP prober
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check performs one TCP probe
func (t *TCPChecker) Check(ctx context.Context) Sample {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: t.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Sample{
			Success:   false,
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}
	defer conn.Close()

	return Sample{
		Success:   true,
		Message:   fmt.Sprintf("TCP connection to %s successful", t.Address),
		CheckedAt: start,
		Latency:   time.Since(start),
	}
}

// Kind returns the probe kind
func (t *TCPChecker) Kind() Kind {
	return KindTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
