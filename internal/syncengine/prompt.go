package syncengine

import "github.com/rjrssync/rjrssync/internal/protocol"

// Decision is the answer a prompt callback gives for one ambiguous or
// destructive action. The *All variants additionally pin the
// triggering flag to a concrete answer for the remainder of the run.
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionSkip
	DecisionError
	DecisionProceedAll
	DecisionSkipAll
	DecisionErrorAll
)

// PromptFunc asks the external frontend how to handle one ambiguous
// action. question is a short human-readable description of what is
// about to happen. Prompt calls are always serialized by the engine,
// never concurrent, so a terminal-backed implementation stays
// coherent.
type PromptFunc func(question string) Decision

// flagResolver turns a BehaviourFlags set with possible FlagPrompt
// entries into concrete per-action decisions, calling back at most
// once per ambiguous action and remembering *All answers for the rest
// of the run.
type flagResolver struct {
	flags  protocol.BehaviourFlags
	prompt PromptFunc
}

func newFlagResolver(flags protocol.BehaviourFlags, prompt PromptFunc) *flagResolver {
	return &flagResolver{flags: flags, prompt: prompt}
}

// resolve returns whether the action gated by flag should proceed. It
// mutates the resolver's remembered flags in place when a *All answer
// is given.
func (r *flagResolver) resolve(flag *protocol.BehaviourFlag, question string) (proceed bool, err error) {
	switch *flag {
	case protocol.FlagProceed:
		return true, nil
	case protocol.FlagSkip:
		return false, nil
	case protocol.FlagError:
		return false, errPolicyBlocked(question)
	case protocol.FlagPrompt:
		if r.prompt == nil {
			return false, errPolicyBlocked(question + " (no prompt callback configured)")
		}
		switch r.prompt(question) {
		case DecisionProceed:
			return true, nil
		case DecisionSkip:
			return false, nil
		case DecisionError:
			return false, errPolicyBlocked(question)
		case DecisionProceedAll:
			*flag = protocol.FlagProceed
			return true, nil
		case DecisionSkipAll:
			*flag = protocol.FlagSkip
			return false, nil
		case DecisionErrorAll:
			*flag = protocol.FlagError
			return false, errPolicyBlocked(question)
		}
	}
	return false, errPolicyBlocked(question)
}
