//go:build !windows

package env

import "errors"

func newRegistryTarget(root string) (Target, error) {
	return nil, errors.New("registry environment target is only available on windows")
}
