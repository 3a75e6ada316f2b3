// Package gate computes the state of the mergeguard gate check-run from the
// other check-runs of a commit.
package gate

import "fmt"

const (
	// CheckRunName is the name of the gate check-run.
	CheckRunName = "mergeguard"

	// StatusQueued is used for the pending gate.
	// GitHub documents "pending" as valid status, but the API rejects it.
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	ConclusionSuccess = "success"
	ConclusionSkipped = "skipped"
	ConclusionFailure = "failure"

	InitialTitle   = "Waiting for other checks to complete"
	CompletedTitle = "All status checks have passed"
	Summary        = "Will block merging until all other checks have completed"
)

// PendingTitle returns the output title of a gate that waits for n other
// check-runs.
func PendingTitle(n int) string {
	return fmt.Sprintf("Waiting for %d other checks to complete", n)
}

// App is the GitHub App that owns a check-run.
type App struct {
	ID       int64  `json:"id"`
	ClientID string `json:"client_id"`
	Slug     string `json:"slug,omitempty"`
	Name     string `json:"name,omitempty"`
}

type Output struct {
	Title   string `json:"title,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// CheckRun is a GitHub check-run.
// ID is 0 when the check-run was not created yet.
// Conclusion is empty when it has none.
type CheckRun struct {
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name"`
	HeadSHA    string  `json:"head_sha"`
	Status     string  `json:"status"`
	Conclusion string  `json:"conclusion,omitempty"`
	Output     *Output `json:"output,omitempty"`
	App        *App    `json:"app,omitempty"`
}

// NewCheckRun returns a pending gate check-run for commit.
func NewCheckRun(commit string) *CheckRun {
	return &CheckRun{
		Name:    CheckRunName,
		HeadSHA: commit,
		Status:  StatusQueued,
		Output: &Output{
			Title:   InitialTitle,
			Summary: Summary,
		},
	}
}

// Clone returns a deep copy of the check-run.
func (c *CheckRun) Clone() *CheckRun {
	if c == nil {
		return nil
	}

	result := *c
	if c.Output != nil {
		out := *c.Output
		result.Output = &out
	}

	if c.App != nil {
		app := *c.App
		result.App = &app
	}

	return &result
}

// OwnedBy returns true if the check-run was created by the GitHub App with
// the given client ID.
func (c *CheckRun) OwnedBy(clientID string) bool {
	return c.App != nil && c.App.ClientID != "" && c.App.ClientID == clientID
}

// Succeeded returns true if the check-run completed with a conclusion that
// does not block merging.
func (c *CheckRun) Succeeded() bool {
	if c.Status != StatusCompleted {
		return false
	}

	return c.Conclusion == ConclusionSuccess || c.Conclusion == ConclusionSkipped
}

// Title returns the output title, an empty string if it has no output.
func (c *CheckRun) Title() string {
	if c.Output == nil {
		return ""
	}

	return c.Output.Title
}

func (c *CheckRun) String() string {
	return fmt.Sprintf("%s (id: %d, status: %s, conclusion: %q)", c.Name, c.ID, c.Status, c.Conclusion)
}
