// Copyright 2025 Author(s) of MCP Any
// SPDX-License-Identifier: Apache-2.0

// Package command runs external programs and shebang scripts on behalf of the
// value resolver.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/mcpany/openapi-bridge/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// Executor is an interface for executing commands.
type Executor interface {
	Execute(ctx context.Context, command string, args []string, workingDir string, env []string) (stdout, stderr io.ReadCloser, exitCode <-chan int, err error)
}

// NewExecutor creates a new command executor that runs programs on the local
// host.
func NewExecutor() Executor {
	return &localExecutor{}
}

type localExecutor struct{}

// startAttempts bounds retries of a start that failed with ETXTBSY, which can
// happen when a freshly written script is exec'd while another goroutine forks.
const startAttempts = 5

func (e *localExecutor) Execute(ctx context.Context, command string, args []string, workingDir string, env []string) (io.ReadCloser, io.ReadCloser, <-chan int, error) {
	var (
		cmd              *exec.Cmd
		stdoutR, stderrR *io.PipeReader
		stdoutW, stderrW *io.PipeWriter
		err              error
	)
	for attempt := 0; attempt < startAttempts; attempt++ {
		cmd = exec.CommandContext(ctx, command, args...)
		cmd.Dir = workingDir
		cmd.Env = env

		// Output is copied through in-memory pipes so that Wait only returns once
		// the reader has drained everything the process wrote.
		stdoutR, stdoutW = io.Pipe()
		stderrR, stderrW = io.Pipe()
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW

		err = cmd.Start()
		if err == nil {
			break
		}
		_ = stdoutW.Close()
		_ = stderrW.Close()
		if !errors.Is(err, syscall.ETXTBSY) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start command: %w", err)
	}

	exitCodeChan := make(chan int, 1)
	go func() {
		defer close(exitCodeChan)

		err := cmd.Wait()
		_ = stdoutW.Close()
		_ = stderrW.Close()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCodeChan <- exitErr.ExitCode()
			} else {
				logging.GetLogger().Error("Command execution failed", "error", err)
				exitCodeChan <- -1
			}
		} else {
			exitCodeChan <- 0
		}
	}()

	return stdoutR, stderrR, exitCodeChan, nil
}

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes a command with the given executor and waits for it to finish,
// capturing both output streams.
func Run(ctx context.Context, executor Executor, command string, args []string, env []string) (*Result, error) {
	stdout, stderr, exitCode, err := executor.Execute(ctx, command, args, "", env)
	if err != nil {
		return nil, err
	}

	var outBuf, errBuf bytes.Buffer
	g := new(errgroup.Group)
	g.Go(func() error {
		defer func() { _ = stdout.Close() }()
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		defer func() { _ = stderr.Close() }()
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read command output: %w", err)
	}

	code, ok := <-exitCode
	if !ok {
		code = -1
	}
	return &Result{Stdout: outBuf.String(), Stderr: errBuf.String(), ExitCode: code}, nil
}

// RunScript writes script to a uniquely named temporary file, marks it
// executable and runs it with env. The file is removed afterwards; a failed
// removal is only logged.
func RunScript(ctx context.Context, executor Executor, script string, env []string) (*Result, error) {
	f, err := os.CreateTemp("", "openapi-bridge-script-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create script file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.GetLogger().Debug("Failed to remove script file", "path", path, "error", rmErr)
		}
	}()

	if _, err := f.WriteString(script); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close script file: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to make script executable: %w", err)
	}

	return Run(ctx, executor, path, nil, env)
}
