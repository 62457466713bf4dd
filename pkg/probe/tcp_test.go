package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPChecker_OpenPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	checker := NewTCPChecker(listener.Addr().String())

	result := checker.Check(context.Background())

	if !result.Success {
		t.Errorf("Expected success, got failure: %s", result.Message)
	}

	if result.Latency <= 0 {
		t.Error("Expected positive latency")
	}
}

func TestTCPChecker_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing is listening on
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()

	checker := NewTCPChecker(address)

	result := checker.Check(context.Background())

	if result.Success {
		t.Error("Expected failure for refused connection, got success")
	}
}

func TestTCPChecker_Timeout(t *testing.T) {
	// A non-routable address forces the dial to hang until the deadline
	checker := NewTCPChecker("10.255.255.1:80").WithTimeout(50 * time.Millisecond)

	result := checker.Check(context.Background())

	if result.Success {
		t.Errorf("Expected failure due to timeout, got success: %s", result.Message)
	}
}

func TestTCPChecker_ContextCancellation(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	checker := NewTCPChecker(listener.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := checker.Check(ctx)

	if result.Success {
		t.Errorf("Expected failure due to cancelled context, got success: %s", result.Message)
	}
}

func TestTCPChecker_Kind(t *testing.T) {
	checker := NewTCPChecker("localhost:5432")
	if checker.Kind() != KindTCP {
		t.Errorf("Expected kind %s, got %s", KindTCP, checker.Kind())
	}
}
