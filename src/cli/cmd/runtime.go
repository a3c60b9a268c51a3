package cmd

import (
	"fmt"

	"github.com/androiddrew/vdist/src/machine"
)

const (
	runtimeDocker     = "docker"
	runtimeContainerd = "containerd"
)

// newRuntime returns the container runtime selected by --runtime and a
// func releasing it.
func newRuntime() (machine.Runtime, func(), error) {
	switch runtimeName {
	case runtimeDocker:
		return machine.NewDockerRuntime(verbose), func() {}, nil
	case runtimeContainerd:
		rt, err := machine.NewContainerdRuntime(containerdAddress, "", logger)
		if err != nil {
			return nil, nil, err
		}
		return rt, func() {
			if err := rt.Close(); err != nil {
				logger.Warn("closing containerd client", "error", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown runtime %q (supported: %s, %s)", runtimeName, runtimeDocker, runtimeContainerd)
}
