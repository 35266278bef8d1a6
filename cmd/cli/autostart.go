package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	serverBinary       = "nowatermark-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// isServerRunning checks if the server is responding to health checks
func isServerRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// serverCandidates lists where the server binary is looked up, in order:
// next to the CLI, on PATH, then common install prefixes.
func serverCandidates() []string {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), serverBinary))
	}
	if onPath, err := exec.LookPath(serverBinary); err == nil {
		candidates = append(candidates, onPath)
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/bin", serverBinary),
		filepath.Join(os.Getenv("HOME"), "go", "bin", serverBinary),
		filepath.Join(os.Getenv("HOME"), ".local", "bin", serverBinary),
	)
	return candidates
}

func findServerBinary() (string, error) {
	for _, candidate := range serverCandidates() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// startServerBackground starts the server as a detached process
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(serverPath)
	setSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return cmd.Process.Release()
}

// waitForServerReady polls the health endpoint until it answers or the timeout passes
func waitForServerReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, serverStartTimeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()

	for {
		if isServerRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server did not start within %v", serverStartTimeout)
		case <-ticker.C:
		}
	}
}

// ensureServerRunning checks if server is running, starts it if not
func ensureServerRunning() error {
	ctx := context.Background()
	if isServerRunning(ctx) {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := startServerBackground(); err != nil {
		return err
	}
	if err := waitForServerReady(ctx); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Server started successfully")
	return nil
}
