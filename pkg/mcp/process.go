// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// ProcessHandle is the subset of *os.Process the client needs for
// shutdown escalation. Satisfied by *os.Process.
type ProcessHandle interface {
	Signal(sig os.Signal) error
	Kill() error
}

// isProcessRunning checks if a process with the given PID exists.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so send signal 0 to probe
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// waitForExit waits for the process to exit, checking every interval.
// Returns an error if the process is still running after timeout.
func waitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := 50 * time.Millisecond

	for time.Now().Before(deadline) {
		if !isProcessRunning(pid) {
			return nil
		}
		time.Sleep(interval)
	}

	return fmt.Errorf("process %d still running after %s", pid, timeout)
}

// terminateProcess escalates from a graceful signal to SIGKILL.
// The transport close has already signalled the process by closing its
// stdin; SIGTERM covers providers that ignore a closed pipe, SIGKILL
// covers providers that ignore everything.
func terminateProcess(proc ProcessHandle, pid int, grace time.Duration) error {
	if pid <= 0 || !isProcessRunning(pid) {
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between the probe and the signal
		if !isProcessRunning(pid) {
			return nil
		}
		return fmt.Errorf("failed to send SIGTERM to %d: %w", pid, err)
	}

	if err := waitForExit(pid, grace); err == nil {
		return nil
	}

	if err := proc.Kill(); err != nil {
		if !isProcessRunning(pid) {
			return nil
		}
		return fmt.Errorf("failed to send SIGKILL to %d: %w", pid, err)
	}

	return waitForExit(pid, grace)
}
