// Package vagrant emits a templated Vagrantfile for mounting a downloaded
// snapshot image, grounded on the original implementation's
// init_vagrant: write a bundled template into the target directory
// unless a Vagrantfile already exists there and force was not given.
package vagrant

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

//go:embed vagrantfile.tmpl
var template []byte

// Init writes a Vagrantfile into dir. If one already exists and force is
// false, it returns a dsnaperr.KindOutputExists error without touching
// the file, matching pkg/sparsefile.Prepare's existing-output contract.
func Init(dir string, force bool) (string, error) {
	out := filepath.Join(dir, "Vagrantfile")

	if !force {
		if _, err := os.Stat(out); err == nil {
			return "", dsnaperr.New(dsnaperr.KindOutputExists, fmt.Errorf("%s already exists", out))
		} else if !os.IsNotExist(err) {
			return "", dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("stat %s: %w", out, err))
		}
	}

	if err := os.WriteFile(out, template, 0o644); err != nil {
		return "", dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("write %s: %w", out, err))
	}
	return out, nil
}
