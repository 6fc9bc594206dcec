package compiler

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/qobs-build/kompile/internal/msg"
)

// StateFilename is kept in the output directory by Incremental. It
// holds one entry per unit compiled into that directory, so a main and a
// test unit may share an output directory.
const StateFilename = ".kompile_state.json"

// State is what Incremental remembers about the last successful run of
// one unit.
type State struct {
	RunID   string            `json:"run_id,omitempty"`
	Sources map[string]string `json:"sources,omitempty"` // source file -> hash
	Flags   []string          `json:"flags,omitempty"`
}

// StateFile is the content of StateFilename, keyed by unitKey.
type StateFile struct {
	Units map[string]*State `json:"units"`
}

// Incremental skips the wrapped compiler when the sources and flags are
// the same as in the last successful run into the same output
// directory, and that directory still holds artifacts.
type Incremental struct {
	Compiler Compiler
	Flags    []string // anything besides the sources that affects output
	RunID    string
	Jobs     int // concurrent hashes, runtime.NumCPU() if zero
	Quiet    bool
}

var _ Compiler = (*Incremental)(nil)

func (c *Incremental) Compile(ctx context.Context, outputDir string, files []string) error {
	statePath := filepath.Join(outputDir, StateFilename)
	key := unitKey(files)

	sf, err := loadState(statePath)
	if err != nil {
		msg.Warn("failed to load build state: %v", err)
		sf = &StateFile{Units: map[string]*State{}}
	}
	old := sf.Units[key]

	state, err := c.currentState(ctx, files)
	if err != nil {
		msg.Warn("failed to fingerprint sources, compiling anyway: %v", err)
		state = nil
	}

	if state != nil && old != nil && state.sameAs(old) && hasArtifacts(outputDir) {
		if !c.Quiet {
			msg.Status("Fresh", "%s (%d files, compiled by run %s)", outputDir, len(files), old.RunID)
		}
		return nil
	}

	// a failed run must not leave the old fingerprint behind
	if old != nil {
		delete(sf.Units, key)
		if err := saveState(statePath, sf); err != nil {
			msg.Warn("failed to remove stale build state: %v", err)
		}
	}

	if err := c.Compiler.Compile(ctx, outputDir, files); err != nil {
		return err
	}

	if state != nil {
		sf.put(key, state)
		if err := saveState(statePath, sf); err != nil {
			msg.Warn("failed to save build state: %v", err)
		}
	}
	return nil
}

// put stores state under key and drops entries that share a source
// with it, which are earlier versions of the same unit.
func (sf *StateFile) put(key string, state *State) {
	for k, other := range sf.Units {
		for src := range state.Sources {
			if _, ok := other.Sources[src]; ok {
				delete(sf.Units, k)
				break
			}
		}
	}
	sf.Units[key] = state
}

// unitKey identifies a unit by its set of source files.
func unitKey(files []string) string {
	sorted := slices.Clone(files)
	slices.Sort(sorted)
	hash := sha256.New()
	for _, f := range sorted {
		io.WriteString(hash, f)
		hash.Write([]byte{0})
	}
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

func (c *Incremental) currentState(ctx context.Context, files []string) (*State, error) {
	jobs := c.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	sums, err := hashFiles(ctx, files, jobs)
	if err != nil {
		return nil, err
	}
	state := &State{
		RunID:   c.RunID,
		Sources: make(map[string]string, len(files)),
		Flags:   slices.Clone(c.Flags),
	}
	for i, f := range files {
		state.Sources[f] = sums[i]
	}
	return state, nil
}

func (s *State) sameAs(old *State) bool {
	if !slices.Equal(s.Flags, old.Flags) || len(s.Sources) != len(old.Sources) {
		return false
	}
	for src, hash := range s.Sources {
		if old.Sources[src] != hash {
			return false
		}
	}
	return true
}

// hasArtifacts reports whether dir holds anything besides the state file.
func hasArtifacts(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() != StateFilename {
			return true
		}
	}
	return false
}

// loadState returns an empty StateFile without error when there is no
// previous state
func loadState(path string) (*StateFile, error) {
	sf := &StateFile{Units: map[string]*State{}}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sf, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(sf); err != nil {
		return nil, err
	}
	if sf.Units == nil {
		sf.Units = map[string]*State{}
	}
	return sf, nil
}

func saveState(path string, sf *StateFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// hashFiles computes the SHA256 of every file, at most limit at a time.
func hashFiles(ctx context.Context, files []string, limit int) ([]string, error) {
	sums := make([]string, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, path := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := fileHash(path)
			if err != nil {
				return err
			}
			sums[i] = sum
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
