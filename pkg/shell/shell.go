// Package shell dispatches "reveal in file manager" requests to the host
// OS. This server runs headless, so the only implementation on offer is
// a no-op that reports itself as unsupported; the interface exists so a
// future native launcher has somewhere to plug in.
package shell

import (
	"fmt"
	"runtime"
)

// Opener reveals path in the host's file manager.
type Opener interface {
	OpenInFileManager(path string) error
}

// Unsupported is the headless Opener: it always fails, naming the host
// OS in the error so a caller surfacing it to a user can explain why.
type Unsupported struct{}

// NewUnsupported returns the headless Opener.
func NewUnsupported() Unsupported { return Unsupported{} }

func (Unsupported) OpenInFileManager(path string) error {
	return fmt.Errorf("show path in file manager: not supported on %s in headless mode", runtime.GOOS)
}
