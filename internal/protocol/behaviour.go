package protocol

import "fmt"

// BehaviourFlag is one of the four closed policies controlling a
// destructive or ambiguous action.
type BehaviourFlag uint8

const (
	FlagError BehaviourFlag = iota
	FlagSkip
	FlagPrompt
	FlagProceed
)

func (f BehaviourFlag) String() string {
	switch f {
	case FlagError:
		return "error"
	case FlagSkip:
		return "skip"
	case FlagPrompt:
		return "prompt"
	case FlagProceed:
		return "proceed"
	default:
		return fmt.Sprintf("behaviour-flag(%d)", uint8(f))
	}
}

// ParseBehaviourFlag parses the CLI-facing spelling of a flag.
func ParseBehaviourFlag(s string) (BehaviourFlag, error) {
	switch s {
	case "ERROR", "error":
		return FlagError, nil
	case "SKIP", "skip":
		return FlagSkip, nil
	case "PROMPT", "prompt":
		return FlagPrompt, nil
	case "PROCEED", "proceed":
		return FlagProceed, nil
	default:
		return 0, fmt.Errorf("unknown behaviour flag %q", s)
	}
}

// BehaviourFlags is the per-doer-session policy set controlling
// destructive or ambiguous actions, sent once as part of SetRoot.
type BehaviourFlags struct {
	OverwriteNewerDest      BehaviourFlag
	ReplaceFileWithFolder   BehaviourFlag
	ReplaceFolderWithFile   BehaviourFlag
	DestFileUpdateNewer     BehaviourFlag
	CreateDestRootAncestors BehaviourFlag
}

// DefaultBehaviourFlags matches rjrssync's out-of-the-box policy: the
// engine proceeds with a normal update but still errors on anything
// that would destroy a folder tree without being asked.
func DefaultBehaviourFlags() BehaviourFlags {
	return BehaviourFlags{
		OverwriteNewerDest:      FlagProceed,
		ReplaceFileWithFolder:   FlagError,
		ReplaceFolderWithFile:   FlagError,
		DestFileUpdateNewer:     FlagSkip,
		CreateDestRootAncestors: FlagProceed,
	}
}

func (b BehaviourFlags) encode(w *Writer) {
	w.WriteU8(uint8(b.OverwriteNewerDest))
	w.WriteU8(uint8(b.ReplaceFileWithFolder))
	w.WriteU8(uint8(b.ReplaceFolderWithFile))
	w.WriteU8(uint8(b.DestFileUpdateNewer))
	w.WriteU8(uint8(b.CreateDestRootAncestors))
}

func decodeBehaviourFlags(r *Reader) (BehaviourFlags, error) {
	var b BehaviourFlags
	vals := make([]*BehaviourFlag, 5)
	vals[0] = &b.OverwriteNewerDest
	vals[1] = &b.ReplaceFileWithFolder
	vals[2] = &b.ReplaceFolderWithFile
	vals[3] = &b.DestFileUpdateNewer
	vals[4] = &b.CreateDestRootAncestors
	for _, v := range vals {
		raw, err := r.ReadU8()
		if err != nil {
			return BehaviourFlags{}, err
		}
		*v = BehaviourFlag(raw)
	}
	return b, nil
}

// FilterRule is one (regex, action) pair of a Filter, as carried on
// the wire. Regex compilation happens doer-side in internal/filter;
// the wire only carries the pattern source.
type FilterRule struct {
	Pattern string
	Include bool
}

// Filter is the ordered list of FilterRules sent with GetEntries.
type Filter struct {
	Rules []FilterRule
}

func (f Filter) encode(w *Writer) {
	w.WriteU32(uint32(len(f.Rules)))
	for _, rule := range f.Rules {
		w.WriteString(rule.Pattern)
		w.WriteBool(rule.Include)
	}
}

func decodeFilter(r *Reader) (Filter, error) {
	n, err := r.ReadU32()
	if err != nil {
		return Filter{}, err
	}
	if n > MaxFrameBytes {
		return Filter{}, fmt.Errorf("protocol: filter rule count %d exceeds ceiling", n)
	}
	rules := make([]FilterRule, 0, n)
	for i := uint32(0); i < n; i++ {
		pattern, err := r.ReadString()
		if err != nil {
			return Filter{}, err
		}
		include, err := r.ReadBool()
		if err != nil {
			return Filter{}, err
		}
		rules = append(rules, FilterRule{Pattern: pattern, Include: include})
	}
	return Filter{Rules: rules}, nil
}
