// Package resolve locates the tuning file and model directory for a
// hardware tier.
//
// Search order:
//  1. user override directory (<UserConfigDir>/<product>, or configured)
//  2. bundled resource directory next to the executable
//
// The first root containing the tier's tuning file wins; its models/
// subdirectory is the model directory. The dedicated-GPU tier falls back
// to the generic file within each root. File names differ per platform
// (see names_*.go).
package resolve

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/teranos/vidmask/errors"
)

// Tier is a coarse hardware hint
type Tier int

const (
	TierGeneric Tier = iota
	TierDedicatedGPU
)

func (t Tier) String() string {
	if t == TierDedicatedGPU {
		return "dedicated-gpu"
	}
	return "generic"
}

// ModelDirName is the model directory name under a search root
const ModelDirName = "models"

// Paths is a resolved tuning file and model directory
type Paths struct {
	TuningFile string
	ModelDir   string
	// Root is the search root that supplied the tuning file.
	Root string
}

// Resolver maps a tier to paths. Engines receive one by injection so tests
// and platforms can swap the search order.
type Resolver func(tier Tier) (Paths, error)

// Options configures New. Empty directories select the per-OS defaults.
type Options struct {
	Fs          afero.Fs
	Product     string
	OverrideDir string
	ResourceDir string
}

// Root is one entry of the search order
type Root struct {
	Kind string // "override" or "resource"
	Dir  string
}

// FileName returns the platform tuning file name for a tier
func FileName(tier Tier) string {
	if tier == TierDedicatedGPU {
		return gpuTuningFile
	}
	return genericTuningFile
}

// Roots returns the search order for o
func Roots(o Options) ([]Root, error) {
	override, err := overrideDir(o)
	if err != nil {
		return nil, err
	}
	resource, err := resourceDir(o)
	if err != nil {
		return nil, err
	}
	var roots []Root
	if override != "" {
		roots = append(roots, Root{Kind: "override", Dir: override})
	}
	if resource != "" {
		roots = append(roots, Root{Kind: "resource", Dir: resource})
	}
	return roots, nil
}

// New returns a Resolver over o's search order. Roots are recomputed on
// every call so a directory created after startup is picked up.
func New(o Options) Resolver {
	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return func(tier Tier) (Paths, error) {
		roots, err := Roots(o)
		if err != nil {
			return Paths{}, err
		}
		names := candidateNames(tier)
		searched := make([]string, 0, len(roots)*len(names))
		for _, root := range roots {
			for _, name := range names {
				candidate := filepath.Join(root.Dir, name)
				searched = append(searched, candidate)
				if isFile(fs, candidate) {
					return Paths{
						TuningFile: candidate,
						ModelDir:   filepath.Join(root.Dir, ModelDirName),
						Root:       root.Dir,
					}, nil
				}
			}
		}
		return Paths{}, errors.WithHintf(
			errors.NewNotFoundError("tuning file %s for tier %s", names[0], tier),
			"searched: %v", searched)
	}
}

// candidateNames lists the file names tried in each root. The GPU tier
// falls back to the generic file of the same root, so an override of the
// generic file still wins over a bundled GPU file.
func candidateNames(tier Tier) []string {
	if tier == TierDedicatedGPU {
		return []string{FileName(TierDedicatedGPU), FileName(TierGeneric)}
	}
	return []string{FileName(TierGeneric)}
}

// Static returns a Resolver that always yields p
func Static(p Paths) Resolver {
	return func(Tier) (Paths, error) { return p, nil }
}

func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}

func overrideDir(o Options) (string, error) {
	if o.OverrideDir != "" {
		return expand(o.OverrideDir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		// No home on some service accounts; the resource root still applies.
		return "", nil
	}
	product := o.Product
	if product == "" {
		product = "vidmask"
	}
	return filepath.Join(base, product), nil
}

func resourceDir(o Options) (string, error) {
	if o.ResourceDir != "" {
		return expand(o.ResourceDir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate executable for resource directory")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "resources"), nil
}

func expand(dir string) (string, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to expand %s", dir)
	}
	return filepath.Clean(expanded), nil
}
