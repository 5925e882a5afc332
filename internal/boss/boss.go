// Package boss drives one sync end to end: it resolves each endpoint
// to a Command/Response link (an in-process doer for a local path, a
// launched remote doer otherwise), owns the resulting plan through
// internal/syncengine, and reports progress/results to the caller.
// Grounded on rclone's fs/sync package acting as the orchestration
// layer above fs/operations - here that role is internal/syncengine,
// and Boss is the thin driver rclone's `sync` command itself plays.
package boss

import (
	"fmt"
	"time"

	"github.com/rjrssync/rjrssync/internal/accounting"
	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/doer"
	"github.com/rjrssync/rjrssync/internal/launcher"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/rjrssync/rjrssync/internal/rlog"
	"github.com/rjrssync/rjrssync/internal/syncengine"
)

// Endpoint is one side of a sync: a path, optionally on a remote host.
type Endpoint struct {
	Path          string
	TrailingSlash bool

	// Remote is nil for a local endpoint.
	Remote *RemoteSpec
}

// RemoteSpec names a remote host/user pair and how to reach it.
type RemoteSpec struct {
	User string
	Host string

	Strategy      launcher.Strategy
	SSHCommand    []string // used when Strategy == StrategyExternal
	Internal      launcher.InternalSSHOptions
	RemotePath    string
	RemotePort    int
	ForceRedeploy bool
	Deployer      launcher.Deployer
}

// Options configures a single RunSync invocation.
type Options struct {
	Src, Dest Endpoint

	Flags  protocol.BehaviourFlags
	Filter protocol.Filter
	DryRun bool

	// SyncPrompt resolves behaviour-flag prompts raised mid-sync
	// (spec section 4.3 step 7). Nil means prompts are never expected
	// to fire (all flags pre-resolved to non-prompt values).
	SyncPrompt syncengine.PromptFunc

	// DeployPrompt asks permission to deploy a lite binary to a
	// remote host that doesn't already have a compatible doer (spec
	// section 4.4 point 3). Nil means deploys are never permitted.
	DeployPrompt launcher.PromptFunc

	// ReportStats, when non-nil, is called periodically (and once
	// more at the end) with a human-readable progress line (spec
	// section 6's `--stats`).
	ReportStats      func(string)
	StatsInterval    time.Duration
	HandshakeTimeout time.Duration
}

func (o Options) statsInterval() time.Duration {
	if o.StatsInterval == 0 {
		return 5 * time.Second
	}
	return o.StatsInterval
}

// endpointHandle is a connected side plus whatever needs tearing down.
type endpointHandle struct {
	link  *comms.BossLink
	close func() error
}

// RunSync connects both endpoints, drives the engine and tears
// everything down, returning the engine's error unwrapped (already an
// *rerr.E from lower layers).
func RunSync(opts Options) error {
	src, err := connect("source", opts.Src, opts)
	if err != nil {
		return err
	}
	defer src.close()

	dest, err := connect("dest", opts.Dest, opts)
	if err != nil {
		return err
	}
	defer dest.close()

	var stats *accounting.Stats
	var stopStats chan struct{}
	if opts.ReportStats != nil {
		stats = accounting.New()
		stopStats = make(chan struct{})
		go stats.ReportEvery(opts.statsInterval(), opts.ReportStats, stopStats)
		defer func() {
			close(stopStats)
			opts.ReportStats(stats.Snapshot().String())
		}()
	}

	engine := &syncengine.Engine{
		Src:    src.link,
		Dest:   dest.link,
		Flags:  opts.Flags,
		Filter: opts.Filter,
		DryRun: opts.DryRun,
		Prompt: opts.SyncPrompt,
		Stats:  stats,
	}

	if err := engine.RunSync(opts.Src.Path, opts.Dest.Path, opts.Src.TrailingSlash, opts.Dest.TrailingSlash); err != nil {
		return err
	}
	return nil
}

// connect resolves one Endpoint to a live Command/Response link,
// either a same-process doer or a launched remote one.
func connect(side string, ep Endpoint, opts Options) (*endpointHandle, error) {
	if ep.Remote == nil {
		return connectLocal(side)
	}
	return connectRemote(side, ep, opts)
}

func connectLocal(side string) (*endpointHandle, error) {
	bossLink, doerLink := comms.NewInProcessPair()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := doer.New(side).Serve(doerLink); err != nil {
			rlog.Errorf(side, "local doer exited: %v", err)
		}
	}()
	return &endpointHandle{
		link: bossLink,
		close: func() error {
			err := bossLink.Close()
			<-done
			return err
		},
	}, nil
}

func connectRemote(side string, ep Endpoint, opts Options) (*endpointHandle, error) {
	remote := ep.Remote
	host := remote.Host
	if host == "" {
		return nil, rerr.Wrap(rerr.UserInput, rerr.Side(side), ep.Path, fmt.Errorf("remote endpoint has no host"))
	}

	launchOpts := launcher.Options{
		Strategy:         remote.Strategy,
		Host:             host,
		SSHCommand:       remote.SSHCommand,
		Internal:         remote.Internal,
		RemotePath:       remote.RemotePath,
		RemotePort:       remote.RemotePort,
		ForceRedeploy:    remote.ForceRedeploy,
		HandshakeTimeout: opts.HandshakeTimeout,
		Deployer:         remote.Deployer,
		Prompt:           opts.DeployPrompt,
	}

	r, err := launcher.Launch(launchOpts)
	if err != nil {
		return nil, err
	}
	rlog.Infof(side, "connected to remote doer on %s", host)
	return &endpointHandle{link: r.Link, close: r.Close}, nil
}
