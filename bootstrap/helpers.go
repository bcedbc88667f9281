package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"drivemap/config"

	"go.uber.org/zap"
)

// EnsureDataDirectories creates the required data directories with proper
// permissions. This is a pre-flight check that runs before any service
// initialization.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	absPath, err := filepath.Abs(cfg.DataPaths.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for %s: %w", cfg.DataPaths.DataDir, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w\n"+
			"  Remediation: Ensure the parent directory exists and is writable\n"+
			"  For Docker: Check volume mount permissions\n"+
			"  For bare metal: Run 'mkdir -p %s && chmod 755 %s'", absPath, err, absPath, absPath)
	}

	// Verify write permissions
	testFile := filepath.Join(absPath, ".drivemap_write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", absPath, err)
	}
	os.Remove(testFile)

	sugar.Infow("Data directory ready", "path", absPath)
	return nil
}

// ClassifyConnectionError provides specific error messages based on the type
// of connection failure.
func ClassifyConnectionError(err error, addr string) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Connection to %s timed out.\n"+
			"  Check that the service is running and reachable from this host.", addr)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return fmt.Sprintf("Connection to %s refused.\n"+
			"  Check that the service is running and listening on the expected port.", addr)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("Could not resolve host for %s: %v\n"+
			"  Check the configured address and DNS.", addr, dnsErr)
	}

	return fmt.Sprintf("Connection to %s failed: %v", addr, err)
}
