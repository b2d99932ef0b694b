package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Call records one executor invocation.
type Call struct {
	Binary string
	Args   []string
	Output bool
}

// String renders the call as a shell-like line.
func (c Call) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// RecordingExecutor records invocations and lets tests script their effects.
// It satisfies toolexec.Executor.
type RecordingExecutor struct {
	mu    sync.Mutex
	calls []Call

	// Hook runs for every call; a non-nil error fails the call.
	Hook func(call Call) error
	// Outputs maps a binary name to the stdout returned by Output. Missing
	// entries return an empty string.
	Outputs map[string]string
	// OutputFunc, when set, produces Output results and overrides Outputs.
	OutputFunc func(call Call) (string, error)
	// FailBinary makes every call to the named binary fail.
	FailBinary string
}

// Run implements toolexec.Executor.
func (r *RecordingExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	call := Call{Binary: binary, Args: append([]string(nil), args...)}
	if err := r.record(call); err != nil {
		return err
	}
	if onOutput != nil {
		onOutput("ran " + binary)
	}
	return nil
}

// Output implements toolexec.Executor.
func (r *RecordingExecutor) Output(_ context.Context, binary string, args []string) (string, error) {
	call := Call{Binary: binary, Args: append([]string(nil), args...), Output: true}
	if err := r.record(call); err != nil {
		return "", err
	}
	r.mu.Lock()
	fn := r.OutputFunc
	out := r.Outputs[binary]
	r.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return out, nil
}

func (r *RecordingExecutor) record(call Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	hook, fail := r.Hook, r.FailBinary
	r.mu.Unlock()

	if fail != "" && call.Binary == fail {
		return fmt.Errorf("%s: simulated failure", call.Binary)
	}
	if hook != nil {
		return hook(call)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *RecordingExecutor) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Binaries returns the binary of every recorded call in order.
func (r *RecordingExecutor) Binaries() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Binary)
	}
	return out
}

// ArgAfter returns the argument following flag, if any.
func (c Call) ArgAfter(flag string) (string, bool) {
	idx := slices.Index(c.Args, flag)
	if idx < 0 || idx+1 >= len(c.Args) {
		return "", false
	}
	return c.Args[idx+1], true
}

// ProducedFiles returns the files the real tool would write for call, so
// fakes can create them. Output calls produce nothing.
func ProducedFiles(call Call) []string {
	if call.Output || len(call.Args) == 0 {
		return nil
	}
	base := filepath.Base(call.Binary)
	switch {
	case strings.Contains(base, "antsRegistration"):
		if prefix, ok := call.ArgAfter("-o"); ok {
			return []string{
				prefix + "Warped.nii.gz",
				prefix + "0GenericAffine.mat",
				prefix + "1Warp.nii.gz",
			}
		}
		return nil
	case base == "julia":
		if len(call.Args) < 2 {
			return nil
		}
		return []string{call.Args[len(call.Args)-2]}
	}
	for _, flag := range []string{"-o", "--o"} {
		if out, ok := call.ArgAfter(flag); ok {
			return []string{out}
		}
	}
	return []string{call.Args[len(call.Args)-1]}
}

// WriteProducedFiles is a Hook that creates every file ProducedFiles names.
func WriteProducedFiles(call Call) error {
	for _, path := range ProducedFiles(call) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte("nii"), 0o644); err != nil {
			return err
		}
	}
	return nil
}
