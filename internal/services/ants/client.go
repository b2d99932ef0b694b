package ants

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ukbqsm/internal/fileutil"
	"ukbqsm/internal/services/toolexec"
)

// Transform selects the antsRegistrationSyNQuick.sh transform type.
type Transform string

const (
	// TransformAffine is rigid followed by affine (-t a).
	TransformAffine Transform = "a"
	// TransformSyN is rigid, affine and deformable SyN (-t s).
	TransformSyN Transform = "s"
)

// Deformable reports whether the transform produces a warp field.
func (t Transform) Deformable() bool { return t == TransformSyN }

// Interpolation names an antsApplyTransforms interpolator.
type Interpolation string

const (
	InterpolationLinear  Interpolation = "Linear"
	InterpolationNearest Interpolation = "NearestNeighbor"
)

// Outputs names the files antsRegistrationSyNQuick.sh writes for a prefix.
type Outputs struct {
	Prefix      string
	Warped      string
	InverseWarp string
	Affine      string
	Warp        string
}

// OutputsFor returns the output names produced for prefix.
func OutputsFor(prefix string) Outputs {
	return Outputs{
		Prefix:      prefix,
		Warped:      prefix + "Warped.nii.gz",
		InverseWarp: prefix + "InverseWarped.nii.gz",
		Affine:      prefix + "0GenericAffine.mat",
		Warp:        prefix + "1Warp.nii.gz",
	}
}

// ForwardTransforms returns the -t arguments that map moving into fixed
// space, in the order antsApplyTransforms expects (last applied first).
func (o Outputs) ForwardTransforms(t Transform) []string {
	if t.Deformable() {
		return []string{o.Warp, o.Affine}
	}
	return []string{o.Affine}
}

// Registration describes one antsRegistrationSyNQuick.sh call.
type Registration struct {
	Fixed     string
	Moving    string
	Prefix    string
	Transform Transform
	Threads   int
}

// Apply describes one antsApplyTransforms call.
type Apply struct {
	Input         string
	Reference     string
	Output        string
	Interpolation Interpolation
	Transforms    []string
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

// Client wraps ANTs CLI interactions.
type Client struct {
	registration string
	apply        string
	exec         toolexec.Executor
}

// New constructs an ANTs client from the two binary names.
func New(registrationBinary, applyBinary string, opts ...Option) (*Client, error) {
	registrationBinary = strings.TrimSpace(registrationBinary)
	applyBinary = strings.TrimSpace(applyBinary)
	if registrationBinary == "" || applyBinary == "" {
		return nil, errors.New("ants binaries required")
	}
	client := &Client{
		registration: registrationBinary,
		apply:        applyBinary,
		exec:         toolexec.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// RegistrationArgs returns the argument list for req.
func RegistrationArgs(req Registration) []string {
	threads := req.Threads
	if threads < 1 {
		threads = 1
	}
	transform := req.Transform
	if transform == "" {
		transform = TransformSyN
	}
	return []string{
		"-d", "3",
		"-f", req.Fixed,
		"-m", req.Moving,
		"-o", req.Prefix,
		"-t", string(transform),
		"-n", strconv.Itoa(threads),
	}
}

// Register runs the registration and checks that the warped image exists.
func (c *Client) Register(ctx context.Context, req Registration, onOutput func(string)) (Outputs, error) {
	if req.Fixed == "" || req.Moving == "" || req.Prefix == "" {
		return Outputs{}, errors.New("registration requires fixed, moving and prefix")
	}
	if err := c.exec.Run(ctx, c.registration, RegistrationArgs(req), onOutput); err != nil {
		return Outputs{}, fmt.Errorf("%s: %w", c.registration, err)
	}
	out := OutputsFor(req.Prefix)
	if err := fileutil.RequireNonEmpty(out.Warped); err != nil {
		return Outputs{}, fmt.Errorf("%s produced no warped image: %w", c.registration, err)
	}
	return out, nil
}

// ApplyArgs returns the argument list for req.
func ApplyArgs(req Apply) []string {
	interp := req.Interpolation
	if interp == "" {
		interp = InterpolationLinear
	}
	args := []string{
		"-d", "3",
		"-i", req.Input,
		"-r", req.Reference,
		"-o", req.Output,
		"-n", string(interp),
	}
	for _, t := range req.Transforms {
		args = append(args, "-t", t)
	}
	return args
}

// ApplyTransforms resamples req.Input into the reference space.
func (c *Client) ApplyTransforms(ctx context.Context, req Apply, onOutput func(string)) error {
	if req.Input == "" || req.Reference == "" || req.Output == "" {
		return errors.New("apply transforms requires input, reference and output")
	}
	if len(req.Transforms) == 0 {
		return errors.New("apply transforms requires at least one transform")
	}
	if err := c.exec.Run(ctx, c.apply, ApplyArgs(req), onOutput); err != nil {
		return fmt.Errorf("%s: %w", c.apply, err)
	}
	if err := fileutil.RequireNonEmpty(req.Output); err != nil {
		return fmt.Errorf("%s produced no output: %w", c.apply, err)
	}
	return nil
}
