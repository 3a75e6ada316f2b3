package gate

import "fmt"

// Action is the operation that must be run on GitHub to bring the gate into
// its desired state.
type Action uint8

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
)

var actionStrings = [...]string{
	ActionNone:   "none",
	ActionCreate: "create",
	ActionUpdate: "update",
}

func (a Action) String() string {
	if int(a) > len(actionStrings)-1 {
		return fmt.Sprintf("unsupported Action value: %d", a)
	}

	return actionStrings[a]
}

type desiredState struct {
	status     string
	conclusion string
	title      string
}

func desired(uncompleted int) desiredState {
	if uncompleted == 0 {
		return desiredState{
			status:     StatusCompleted,
			conclusion: ConclusionSuccess,
			title:      CompletedTitle,
		}
	}

	return desiredState{
		status: StatusQueued,
		title:  PendingTitle(uncompleted),
	}
}

// apply sets the desired state on run and returns true if a field changed.
func (s *desiredState) apply(run *CheckRun) (changed bool) {
	if run.Status != s.status {
		run.Status = s.status
		changed = true
	}

	if run.Conclusion != s.conclusion {
		run.Conclusion = s.conclusion
		changed = true
	}

	if run.Output == nil {
		run.Output = &Output{Title: s.title, Summary: Summary}
		return true
	}

	if run.Output.Title != s.title {
		run.Output.Title = s.title
		changed = true
	}

	return changed
}

// Decide returns the action and the check-run that must be sent to GitHub
// for a commit with uncompleted other check-runs.
// If existing is nil, a new gate for commit is returned with ActionCreate.
// Otherwise an updated copy of existing is returned with ActionUpdate, or
// ActionNone and nil if it is already in the desired state.
// existing is never modified.
func Decide(uncompleted int, existing *CheckRun, commit string) (Action, *CheckRun) {
	state := desired(uncompleted)

	if existing == nil {
		run := NewCheckRun(commit)
		state.apply(run)
		return ActionCreate, run
	}

	run := existing.Clone()
	// the owning app is set by GitHub, it is not part of update requests
	run.App = nil
	if !state.apply(run) {
		return ActionNone, nil
	}

	return ActionUpdate, run
}
