// Package mritools runs MriResearchTools.jl through julia for magnitude
// homogeneity correction.
package mritools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/services/toolexec"
)

// homogeneityScript reads the magnitude, applies makehomogeneous with the
// given sigma in mm and writes the result with the input header.
const homogeneityScript = `using MriResearchTools; ` +
	`img = readmag(ARGS[1]); ` +
	`savenii(makehomogeneous(img; sigma=parse(Float64, ARGS[3])), ARGS[2]; header=header(img))`

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec toolexec.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps julia invocations.
type Client struct {
	julia string
	exec  toolexec.Executor
}

// New constructs a client for the julia binary.
func New(julia string, opts ...Option) (*Client, error) {
	julia = strings.TrimSpace(julia)
	if julia == "" {
		return nil, errors.New("julia binary required")
	}
	client := &Client{julia: julia, exec: toolexec.CommandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// HomogeneityArgs returns julia arguments for a correction run.
func HomogeneityArgs(input, output string, sigmaMM float64) []string {
	return []string{
		"--startup-file=no",
		"-e", homogeneityScript,
		input, output,
		strconv.FormatFloat(sigmaMM, 'f', -1, 64),
	}
}

// MakeHomogeneous writes a bias-corrected copy of the magnitude image.
func (c *Client) MakeHomogeneous(ctx context.Context, input, output string, sigmaMM float64, onOutput func(string)) error {
	if input == "" || output == "" {
		return errors.New("homogeneity correction requires input and output")
	}
	if sigmaMM <= 0 {
		return fmt.Errorf("sigma must be positive, got %v", sigmaMM)
	}
	if err := c.exec.Run(ctx, c.julia, HomogeneityArgs(input, output, sigmaMM), onOutput); err != nil {
		return fmt.Errorf("%s: %w", c.julia, err)
	}
	if err := fileutil.RequireNonEmpty(output); err != nil {
		return fmt.Errorf("%s produced no output: %w", c.julia, err)
	}
	return nil
}
