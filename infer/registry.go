package infer

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/vidmask/errors"
)

// SupportedRange is the runtime version constraint this engine speaks
const SupportedRange = ">=1.0.0, <2.0.0"

var constraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedRange)
	if err != nil {
		panic(err)
	}
	return c
}()

// RuntimeFactory creates a portable runtime
type RuntimeFactory func() (Runtime, error)

// TextureRuntimeFactory creates an accelerated runtime
type TextureRuntimeFactory func() (TextureRuntime, error)

var (
	registryMu      sync.RWMutex
	runtimes        = map[string]RuntimeFactory{}
	textureRuntimes = map[string]TextureRuntimeFactory{}
)

// Register makes a portable runtime available by name.
// It panics if called twice with the same name or with a nil factory.
func Register(name string, factory RuntimeFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("infer: Register factory is nil")
	}
	if _, dup := runtimes[name]; dup {
		panic("infer: Register called twice for runtime " + name)
	}
	runtimes[name] = factory
}

// RegisterTexture makes an accelerated runtime available by name.
func RegisterTexture(name string, factory TextureRuntimeFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("infer: RegisterTexture factory is nil")
	}
	if _, dup := textureRuntimes[name]; dup {
		panic("infer: RegisterTexture called twice for runtime " + name)
	}
	textureRuntimes[name] = factory
}

// Open creates the named portable runtime and checks its version.
func Open(name string) (Runtime, error) {
	registryMu.RLock()
	factory, ok := runtimes[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.WithHintf(
			errors.NewNotFoundError("runtime %q", name),
			"registered runtimes: %v", Runtimes())
	}

	rt, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create runtime %s", name)
	}
	if err := CheckVersion(rt.Version()); err != nil {
		_ = rt.Close()
		return nil, errors.Wrapf(err, "runtime %s", name)
	}
	return rt, nil
}

// OpenTexture creates the named accelerated runtime and checks its version.
func OpenTexture(name string) (TextureRuntime, error) {
	registryMu.RLock()
	factory, ok := textureRuntimes[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.WithHintf(
			errors.NewNotFoundError("texture runtime %q", name),
			"registered texture runtimes: %v", TextureRuntimes())
	}

	rt, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create texture runtime %s", name)
	}
	if err := CheckVersion(rt.Version()); err != nil {
		_ = rt.Close()
		return nil, errors.Wrapf(err, "texture runtime %s", name)
	}
	return rt, nil
}

// CheckVersion verifies a runtime-reported version against SupportedRange
func CheckVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(errors.ErrIncompatibleRuntime, "unparseable version %q", version)
	}
	if !constraint.Check(v) {
		return errors.Wrapf(errors.ErrIncompatibleRuntime, "version %s outside %s", v, SupportedRange)
	}
	return nil
}

// Runtimes returns the registered portable runtime names, sorted
func Runtimes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(runtimes))
	for name := range runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextureRuntimes returns the registered accelerated runtime names, sorted
func TextureRuntimes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(textureRuntimes))
	for name := range textureRuntimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
