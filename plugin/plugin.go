// Package plugin implements the bridge by which a layer invokes an
// external program: a child process spawned fresh per invocation,
// fed the input molecule as JSON on its standard input, and read back
// as JSON on its standard output.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lme/lmecore/molecule"
)

// Code is one of the six distinct plugin failure modes of the protocol.
type Code int

const (
	// CodeSpawn is returned when the child process could not be started.
	CodeSpawn Code = -1
	// CodeSerialize is returned when the input molecule could not be
	// encoded as JSON.
	CodeSerialize Code = -2
	// CodeWrite is returned when writing the encoded input to the
	// child's standard input failed.
	CodeWrite Code = -3
	// CodeWait is returned when waiting for the child, or reading its
	// standard output, failed.
	CodeWait Code = -4
	// CodeParse is returned when the child's standard output could not
	// be parsed as a molecule.
	CodeParse Code = -5
	// CodeNoStdin is returned when the child's standard input pipe could
	// not be obtained.
	CodeNoStdin Code = -6
)

// Error is the typed error surfaced by a failed plugin invocation. It
// carries the distinct negative code for the failure mode, paired with a
// diagnostic message, per §4.2/§7 of the plugin protocol.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, cause error) *Error {
	return &Error{Code: code, Message: cause.Error(), cause: cause}
}

var (
	directoryOnce sync.Once
	directory     string
)

// Directory returns the process-wide plugin directory: the value of
// LME_PLUGIN_DIRECTORY if set at first access, otherwise the "plugins"
// subdirectory of the process working directory. It is resolved once and
// is effectively constant afterward; tests that need a different value
// must set the environment variable before first use.
func Directory() string {
	directoryOnce.Do(func() {
		if v, ok := os.LookupEnv("LME_PLUGIN_DIRECTORY"); ok {
			directory = v
			return
		}
		wd, err := os.Getwd()
		if err != nil {
			directory = "plugins"
			return
		}
		directory = filepath.Join(wd, "plugins")
	})
	return directory
}

// Bridge invokes external programs resolved relative to Directory().
type Bridge struct{}

// New returns a Bridge. It has no state of its own: the plugin directory
// is process-wide, per the design note in §9.
func New() *Bridge {
	return &Bridge{}
}

// Invoke spawns cmd (resolved under the plugin directory) with args,
// writes input as one JSON document to its standard input, waits for it
// to exit, and parses its standard output as the additive molecule to
// merge into input. A nonzero exit status that still emits parseable
// JSON is tolerated: the JSON on stdout is the contract, not the exit
// code.
//
// No lock of the caller's should be held across this call: it suspends
// on child process I/O, and ctx cancellation is honored by terminating
// the child (via exec.CommandContext) rather than leaving it orphaned.
func (b *Bridge) Invoke(ctx context.Context, cmd string, args []string, input molecule.Molecule) (molecule.Molecule, error) {
	invocationID := uuid.New()
	path := filepath.Join(Directory(), cmd)

	child := exec.CommandContext(ctx, path, args...)
	stdin, err := child.StdinPipe()
	if err != nil {
		return molecule.Molecule{}, newError(CodeNoStdin, errors.Wrapf(err, "plugin %s (invocation %s): obtain stdin", cmd, invocationID))
	}
	var stdout bytes.Buffer
	child.Stdout = &stdout

	if err := child.Start(); err != nil {
		return molecule.Molecule{}, newError(CodeSpawn, errors.Wrapf(err, "plugin %s (invocation %s): spawn", cmd, invocationID))
	}

	payload, err := encodeMolecule(input)
	if err != nil {
		_ = stdin.Close()
		_ = child.Wait()
		return molecule.Molecule{}, newError(CodeSerialize, errors.Wrapf(err, "plugin %s (invocation %s): encode input", cmd, invocationID))
	}

	if _, err := stdin.Write(payload); err != nil {
		_ = stdin.Close()
		_ = child.Wait()
		return molecule.Molecule{}, newError(CodeWrite, errors.Wrapf(err, "plugin %s (invocation %s): write input", cmd, invocationID))
	}
	if err := stdin.Close(); err != nil {
		_ = child.Wait()
		return molecule.Molecule{}, newError(CodeWrite, errors.Wrapf(err, "plugin %s (invocation %s): close stdin", cmd, invocationID))
	}

	if err := child.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return molecule.Molecule{}, newError(CodeWait, errors.Wrapf(err, "plugin %s (invocation %s): wait", cmd, invocationID))
		}
		// A nonzero exit is tolerated as long as stdout parses below.
	}

	out, err := decodeMolecule(stdout.Bytes())
	if err != nil {
		return molecule.Molecule{}, newError(CodeParse, errors.Wrapf(err, "plugin %s (invocation %s): parse output", cmd, invocationID))
	}
	return out, nil
}

func encodeMolecule(m molecule.Molecule) ([]byte, error) {
	wire, err := molecule.ToWire(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

func decodeMolecule(data []byte) (molecule.Molecule, error) {
	var wire molecule.WireMolecule
	if err := json.Unmarshal(data, &wire); err != nil {
		return molecule.Molecule{}, err
	}
	return molecule.FromWire(wire)
}
