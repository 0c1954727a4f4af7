// Package environment exposes the two runtime directories an extension system
// needs from its host.
package environment

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Environment is the host capability resolved by components that need to
// place permanent or scratch data on disk.
type Environment interface {
	PermanentDirectory() string
	TemporaryDirectory() string
}

// Static returns fixed directories. Fixtures use it to point the system under
// test at a workspace.
type Static struct {
	Permanent string
	Temporary string
}

var _ Environment = Static{}

func (s Static) PermanentDirectory() string { return s.Permanent }

func (s Static) TemporaryDirectory() string { return s.Temporary }

// Standard places data under the user's XDG directories.
type Standard struct {
	app string
}

var _ Environment = Standard{}

// NewStandard returns an Environment rooted at $XDG_DATA_HOME/<app> and
// $XDG_CACHE_HOME/<app>/tmp.
func NewStandard(app string) Standard {
	return Standard{app: app}
}

func (s Standard) PermanentDirectory() string {
	return filepath.Join(xdg.DataHome, s.app)
}

func (s Standard) TemporaryDirectory() string {
	return filepath.Join(xdg.CacheHome, s.app, "tmp")
}
