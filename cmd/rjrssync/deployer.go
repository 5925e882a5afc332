package main

import (
	"sync"

	"github.com/rjrssync/rjrssync/internal/embed"
	"github.com/rjrssync/rjrssync/internal/launcher"
)

var (
	deployerOnce sync.Once
	deployer     launcher.Deployer
)

// defaultDeployer reads this process's own executable once and wraps
// it as a launcher.Deployer, so the launcher can extract a lite binary
// for whatever platform a remote handshake reports. A lite binary (no
// embedded sections) yields a Deployer that always errors extraction,
// which is correct: it has nothing to deploy.
func defaultDeployer() launcher.Deployer {
	deployerOnce.Do(func() {
		data, err := embed.ReadOwnExecutable()
		if err != nil {
			deployer = nil
			return
		}
		store, err := embed.NewStore(data)
		if err != nil {
			deployer = nil
			return
		}
		deployer = store
	})
	return deployer
}
