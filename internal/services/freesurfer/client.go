// Package freesurfer wraps mri_convert and mri_binarize.
package freesurfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/services/toolexec"
)

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

// Client wraps FreeSurfer CLI interactions.
type Client struct {
	convert  string
	binarize string
	exec     toolexec.Executor
}

// New constructs a FreeSurfer client.
func New(convertBinary, binarizeBinary string, opts ...Option) (*Client, error) {
	convertBinary = strings.TrimSpace(convertBinary)
	binarizeBinary = strings.TrimSpace(binarizeBinary)
	if convertBinary == "" || binarizeBinary == "" {
		return nil, errors.New("freesurfer binaries required")
	}
	client := &Client{convert: convertBinary, binarize: binarizeBinary, exec: toolexec.CommandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ConvertArgs returns mri_convert arguments. A non-empty like resamples the
// volume onto that image's grid with nearest-neighbour interpolation.
func ConvertArgs(input, output, like string) []string {
	if like == "" {
		return []string{input, output}
	}
	return []string{"-rl", like, "-rt", "nearest", input, output}
}

// Convert runs mri_convert, typically aseg.mgz to NIfTI.
func (c *Client) Convert(ctx context.Context, input, output, like string) error {
	if input == "" || output == "" {
		return errors.New("convert requires input and output")
	}
	return c.run(ctx, c.convert, ConvertArgs(input, output, like), output)
}

// Ventricles writes a binary ventricle mask from a segmentation.
func (c *Client) Ventricles(ctx context.Context, segmentation, output string) error {
	if segmentation == "" || output == "" {
		return errors.New("ventricles requires segmentation and output")
	}
	return c.run(ctx, c.binarize, []string{"--i", segmentation, "--ventricles", "--o", output}, output)
}

func (c *Client) run(ctx context.Context, binary string, args []string, output string) error {
	if err := c.exec.Run(ctx, binary, args, nil); err != nil {
		return fmt.Errorf("%s: %w", binary, err)
	}
	if err := fileutil.RequireNonEmpty(output); err != nil {
		return fmt.Errorf("%s produced no output: %w", binary, err)
	}
	return nil
}
