package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rjrssync/rjrssync/internal/boss"
	"github.com/rjrssync/rjrssync/internal/launcher"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/rjrssync/rjrssync/internal/rlog"
	"github.com/rjrssync/rjrssync/internal/specfile"
	"github.com/rjrssync/rjrssync/internal/syncengine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// cliOptions holds every flag named in spec section 6, parsed as-is
// before any path/behaviour resolution.
type cliOptions struct {
	filter        []string
	specFile      string
	dryRun        bool
	stats         bool
	noProgress    bool
	quiet         bool
	verbose       int
	remotePort    int
	forceRedeploy bool
	doer          bool
	doerPort      int

	behaviour behaviourFlagSet
}

func newRootCommand() *cobra.Command {
	var opt cliOptions

	cmd := &cobra.Command{
		Use:   "rjrssync [flags] src dest",
		Short: "Fast, incremental, cross-platform file-tree synchronizer",
		Args: func(cmd *cobra.Command, args []string) error {
			if opt.doer {
				return nil
			}
			if opt.specFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opt.quiet {
				rlog.SetQuiet()
			} else {
				rlog.SetVerbosity(opt.verbose)
			}

			if opt.doer {
				return runDoerMode(opt.doerPort)
			}
			if opt.specFile != "" {
				return runSpecFile(opt)
			}
			return runSingleSync(args[0], args[1], opt)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opt.filter, "filter", nil, "filter rule, +REGEX or -REGEX, may be repeated")
	flags.StringVar(&opt.specFile, "spec", "", "YAML spec file listing multiple syncs instead of src/dest positional args")
	flags.BoolVar(&opt.dryRun, "dry-run", false, "compute and print planned actions without performing them")
	flags.BoolVar(&opt.stats, "stats", false, "periodically print transfer statistics")
	flags.BoolVar(&opt.noProgress, "no-progress", false, "suppress the live progress line")
	flags.BoolVar(&opt.quiet, "quiet", false, "suppress all output except errors")
	flags.CountVarP(&opt.verbose, "verbose", "v", "increase log verbosity, may be repeated")
	flags.IntVar(&opt.remotePort, "remote-port", 0, "TCP port the remote doer should listen on (0 = automatic)")
	flags.BoolVar(&opt.forceRedeploy, "force-redeploy", false, "always redeploy the embedded lite binary, skipping the handshake fast path")

	flags.StringVar(&opt.behaviour.overwriteNewerDest, "overwrite-dest-newer", "", "ERROR|SKIP|PROMPT|PROCEED")
	flags.StringVar(&opt.behaviour.replaceFileWithFolder, "replace-file-with-folder", "", "ERROR|SKIP|PROMPT|PROCEED")
	flags.StringVar(&opt.behaviour.replaceFolderWithFile, "replace-folder-with-file", "", "ERROR|SKIP|PROMPT|PROCEED")
	flags.StringVar(&opt.behaviour.destFileUpdateNewer, "dest-file-update-newer", "", "ERROR|SKIP|PROMPT|PROCEED")
	flags.StringVar(&opt.behaviour.createDestRootAncestors, "create-dest-root-ancestors", "", "ERROR|SKIP|PROMPT|PROCEED")
	flags.StringVar(&opt.behaviour.allDestructive, "all-destructive-behaviour", "", "override every destructive/ambiguous flag above at once")

	flags.BoolVar(&opt.doer, "doer", false, "internal: run as the remote end of a launcher handshake")
	flags.IntVar(&opt.doerPort, "port", 0, "internal: TCP port to listen on in --doer mode (0 = automatic)")
	_ = flags.MarkHidden("doer")
	_ = flags.MarkHidden("port")

	cmd.AddCommand(newListEmbeddedBinariesCommand())

	return cmd
}

// runSingleSync handles the plain `rjrssync src dest` invocation.
func runSingleSync(srcArg, destArg string, opt cliOptions) error {
	flags, err := opt.behaviour.resolve()
	if err != nil {
		return rerr.New(rerr.UserInput, err)
	}
	filter, err := parseFilter(opt.filter)
	if err != nil {
		return rerr.New(rerr.UserInput, err)
	}

	bossOpts := boss.Options{
		Src:              parseEndpoint(srcArg),
		Dest:             parseEndpoint(destArg),
		Flags:            flags,
		Filter:           filter,
		DryRun:           opt.dryRun,
		SyncPrompt:       syncPromptFunc(),
		DeployPrompt:     deployPromptFunc(),
		HandshakeTimeout: 30 * time.Second,
	}
	applyLaunchOptions(&bossOpts.Src, opt)
	applyLaunchOptions(&bossOpts.Dest, opt)
	if opt.stats {
		bossOpts.ReportStats = func(line string) { fmt.Fprintln(os.Stderr, line) }
	}

	return boss.RunSync(bossOpts)
}

// runSpecFile handles `--spec FILE`, running every declared sync in
// turn and returning the first error encountered (spec section 6's
// spec-file format).
func runSpecFile(opt cliOptions) error {
	doc, err := specfile.Load(opt.specFile)
	if err != nil {
		return rerr.Wrap(rerr.UserInput, rerr.SideNone, opt.specFile, err)
	}

	for _, sync := range doc.Syncs {
		flags, err := opt.behaviour.resolve()
		if err != nil {
			return rerr.New(rerr.UserInput, err)
		}
		filterRules := sync.Filter
		if len(filterRules) == 0 {
			filterRules = opt.filter
		}
		filter, err := parseFilter(filterRules)
		if err != nil {
			return rerr.New(rerr.UserInput, err)
		}

		src := localOrRemoteEndpoint(sync.Src, doc.SrcHostname, doc.SrcUsername)
		dest := localOrRemoteEndpoint(sync.Dest, doc.DestHostname, doc.DestUsername)

		bossOpts := boss.Options{
			Src:              src,
			Dest:             dest,
			Flags:            flags,
			Filter:           filter,
			DryRun:           opt.dryRun,
			SyncPrompt:       syncPromptFunc(),
			DeployPrompt:     deployPromptFunc(),
			HandshakeTimeout: 30 * time.Second,
		}
		applyLaunchOptions(&bossOpts.Src, opt)
		applyLaunchOptions(&bossOpts.Dest, opt)
		if opt.stats {
			bossOpts.ReportStats = func(line string) { fmt.Fprintln(os.Stderr, line) }
		}

		if err := boss.RunSync(bossOpts); err != nil {
			return err
		}
	}
	return nil
}

func localOrRemoteEndpoint(path, hostname, username string) boss.Endpoint {
	trailingSlash := strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\")
	if hostname == "" {
		return boss.Endpoint{Path: path, TrailingSlash: trailingSlash}
	}
	return boss.Endpoint{
		Path:          path,
		TrailingSlash: trailingSlash,
		Remote:        &boss.RemoteSpec{User: username, Host: hostname},
	}
}

// applyLaunchOptions copies the launcher-affecting CLI flags onto an
// endpoint's RemoteSpec, if any. Called after the endpoint is
// constructed since parseEndpoint/localOrRemoteEndpoint only know
// about the path form, not global CLI flags.
func applyLaunchOptions(ep *boss.Endpoint, opt cliOptions) {
	if ep.Remote == nil {
		return
	}
	ep.Remote.RemotePort = opt.remotePort
	ep.Remote.ForceRedeploy = opt.forceRedeploy
	ep.Remote.Deployer = defaultDeployer()
	if ep.Remote.SSHCommand == nil {
		ep.Remote.SSHCommand = defaultSSHCommandFor(ep.Remote)
	}
}

func defaultSSHCommandFor(r *boss.RemoteSpec) []string {
	target := r.Host
	if r.User != "" {
		target = r.User + "@" + r.Host
	}
	return []string{"ssh", target}
}

// syncPromptFunc builds the sync-engine prompt callback, reading a
// one-line decision from stdin when it's an interactive terminal and
// refusing (erroring) otherwise - an unattended run must never block.
func syncPromptFunc() syncengine.PromptFunc {
	return func(question string) syncengine.Decision {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return syncengine.DecisionError
		}
		fmt.Fprintf(os.Stderr, "%s [proceed/skip/error/proceed-all/skip-all/error-all]: ", question)
		return readDecision(bufio.NewReader(os.Stdin))
	}
}

func readDecision(r *bufio.Reader) syncengine.Decision {
	line, _ := r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "proceed", "p":
		return syncengine.DecisionProceed
	case "skip", "s":
		return syncengine.DecisionSkip
	case "proceed-all", "pa":
		return syncengine.DecisionProceedAll
	case "skip-all", "sa":
		return syncengine.DecisionSkipAll
	case "error-all", "ea":
		return syncengine.DecisionErrorAll
	default:
		return syncengine.DecisionError
	}
}

// deployPromptFunc builds the launcher's deploy-permission callback,
// using the same interactive-terminal detection (spec section 4.4
// point 3's deploy confirmation).
func deployPromptFunc() launcher.PromptFunc {
	return func(question string) bool {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return false
		}
		fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
