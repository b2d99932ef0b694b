// Package fsl wraps fslmaths and fslstats for mask construction and
// per-region statistics.
package fsl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/services/toolexec"
)

// ErrUnexpectedOutput reports fslstats output that could not be parsed.
var ErrUnexpectedOutput = errors.New("unexpected fslstats output")

// Threshold describes an fslmaths label threshold producing a binary mask.
type Threshold struct {
	Input  string
	Lower  int
	Upper  int
	Erode  bool
	Output string
}

// Stats is the parsed result of fslstats -V -P 50.
type Stats struct {
	Voxels int
	Median float64
}

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

// Client wraps FSL CLI interactions.
type Client struct {
	maths string
	stats string
	exec  toolexec.Executor
}

// New constructs an FSL client for the fslmaths and fslstats binaries.
func New(mathsBinary, statsBinary string, opts ...Option) (*Client, error) {
	mathsBinary = strings.TrimSpace(mathsBinary)
	statsBinary = strings.TrimSpace(statsBinary)
	if mathsBinary == "" || statsBinary == "" {
		return nil, errors.New("fsl binaries required")
	}
	client := &Client{maths: mathsBinary, stats: statsBinary, exec: toolexec.CommandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ThresholdArgs returns the fslmaths arguments for t.
func ThresholdArgs(t Threshold) []string {
	args := []string{
		t.Input,
		"-thr", strconv.Itoa(t.Lower),
		"-uthr", strconv.Itoa(t.Upper),
		"-bin",
	}
	if t.Erode {
		args = append(args, "-kernel", "2D", "-ero")
	}
	return append(args, t.Output)
}

// ThresholdMask writes a binary mask of voxels with labels in [Lower, Upper].
func (c *Client) ThresholdMask(ctx context.Context, t Threshold) error {
	if t.Input == "" || t.Output == "" {
		return errors.New("threshold requires input and output")
	}
	if t.Lower > t.Upper {
		return fmt.Errorf("threshold lower %d exceeds upper %d", t.Lower, t.Upper)
	}
	return c.runMaths(ctx, ThresholdArgs(t), t.Output)
}

// AddMasks writes the union of a and b as a binary mask.
func (c *Client) AddMasks(ctx context.Context, a, b, output string) error {
	return c.runMaths(ctx, []string{a, "-add", b, "-bin", output}, output)
}

// SubtractMask writes base with mask voxels removed, clamped to a binary mask.
func (c *Client) SubtractMask(ctx context.Context, base, mask, output string) error {
	return c.runMaths(ctx, []string{base, "-sub", mask, "-thr", "0", "-bin", output}, output)
}

// Binarize writes a binary mask of every non-zero voxel of input.
func (c *Client) Binarize(ctx context.Context, input, output string) error {
	return c.runMaths(ctx, []string{input, "-bin", output}, output)
}

// BinarizeAt writes a binary mask of voxels equal to value.
func (c *Client) BinarizeAt(ctx context.Context, input string, value int, output string) error {
	v := strconv.Itoa(value)
	return c.runMaths(ctx, []string{input, "-thr", v, "-uthr", v, "-bin", output}, output)
}

func (c *Client) runMaths(ctx context.Context, args []string, output string) error {
	if err := c.exec.Run(ctx, c.maths, args, nil); err != nil {
		return fmt.Errorf("%s: %w", c.maths, err)
	}
	if err := fileutil.RequireNonEmpty(output); err != nil {
		return fmt.Errorf("%s produced no output: %w", c.maths, err)
	}
	return nil
}

// MedianArgs returns the fslstats arguments for a masked median.
func MedianArgs(image, mask string, positiveOnly bool) []string {
	args := []string{image, "-k", mask}
	if positiveOnly {
		args = append(args, "-l", "0")
	}
	return append(args, "-V", "-P", "50")
}

// Median returns the median of image inside mask. An empty mask yields NaN.
func (c *Client) Median(ctx context.Context, image, mask string, positiveOnly bool) (float64, error) {
	stats, err := c.MaskedStats(ctx, image, mask, positiveOnly)
	if err != nil {
		return math.NaN(), err
	}
	if stats.Voxels == 0 {
		return math.NaN(), nil
	}
	return stats.Median, nil
}

// MaskedStats runs fslstats and parses voxel count and median.
func (c *Client) MaskedStats(ctx context.Context, image, mask string, positiveOnly bool) (Stats, error) {
	if image == "" || mask == "" {
		return Stats{}, errors.New("stats requires image and mask")
	}
	out, err := c.exec.Output(ctx, c.stats, MedianArgs(image, mask, positiveOnly))
	if err != nil {
		return Stats{}, fmt.Errorf("%s: %w", c.stats, err)
	}
	return ParseStats(out)
}

// ParseStats parses "<voxels> <volume> <median>" as printed by fslstats -V -P 50.
func ParseStats(out string) (Stats, error) {
	fields := strings.Fields(out)
	if len(fields) != 3 {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnexpectedOutput, strings.TrimSpace(out))
	}
	voxels, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || voxels < 0 {
		return Stats{}, fmt.Errorf("%w: voxel count %q", ErrUnexpectedOutput, fields[0])
	}
	median, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: median %q", ErrUnexpectedOutput, fields[2])
	}
	return Stats{Voxels: int(voxels), Median: median}, nil
}
