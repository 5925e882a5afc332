package main

import (
	"fmt"

	"github.com/rjrssync/rjrssync/internal/protocol"
)

// behaviourFlagSet mirrors the CLI's individual --xxx-behaviour flags
// plus the --all-destructive-behaviour override (spec section 6).
type behaviourFlagSet struct {
	overwriteNewerDest      string
	replaceFileWithFolder   string
	replaceFolderWithFile   string
	destFileUpdateNewer     string
	createDestRootAncestors string
	allDestructive          string
}

// resolve turns the CLI strings into protocol.BehaviourFlags, applying
// --all-destructive-behaviour as a blanket override to every
// destructive/ambiguous flag first, then letting any individually-set
// flag win.
func (b behaviourFlagSet) resolve() (protocol.BehaviourFlags, error) {
	flags := protocol.DefaultBehaviourFlags()

	if b.allDestructive != "" {
		all, err := protocol.ParseBehaviourFlag(b.allDestructive)
		if err != nil {
			return flags, fmt.Errorf("--all-destructive-behaviour: %w", err)
		}
		flags.OverwriteNewerDest = all
		flags.ReplaceFileWithFolder = all
		flags.ReplaceFolderWithFile = all
		flags.DestFileUpdateNewer = all
	}

	fields := []struct {
		name string
		raw  string
		dst  *protocol.BehaviourFlag
	}{
		{"--overwrite-dest-newer", b.overwriteNewerDest, &flags.OverwriteNewerDest},
		{"--replace-file-with-folder", b.replaceFileWithFolder, &flags.ReplaceFileWithFolder},
		{"--replace-folder-with-file", b.replaceFolderWithFile, &flags.ReplaceFolderWithFile},
		{"--dest-file-update-newer", b.destFileUpdateNewer, &flags.DestFileUpdateNewer},
		{"--create-dest-root-ancestors", b.createDestRootAncestors, &flags.CreateDestRootAncestors},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		parsed, err := protocol.ParseBehaviourFlag(f.raw)
		if err != nil {
			return flags, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = parsed
	}
	return flags, nil
}

// parseFilter turns a list of "+REGEX" / "-REGEX" CLI strings into a
// protocol.Filter, preserving order (the last matching rule wins).
func parseFilter(rules []string) (protocol.Filter, error) {
	var f protocol.Filter
	for _, rule := range rules {
		if len(rule) < 2 || (rule[0] != '+' && rule[0] != '-') {
			return protocol.Filter{}, fmt.Errorf("--filter rule %q must start with + or -", rule)
		}
		f.Rules = append(f.Rules, protocol.FilterRule{
			Pattern: rule[1:],
			Include: rule[0] == '+',
		})
	}
	return f, nil
}
