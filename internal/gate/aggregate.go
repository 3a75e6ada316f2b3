package gate

// Result is the aggregated state of the check-runs of a commit.
type Result struct {
	// Uncompleted is the number of check-runs of other apps that did not
	// complete successfully.
	Uncompleted int
	// Own is the first gate check-run in the aggregated list, nil if none
	// exists.
	Own *CheckRun
	// DuplicateOwn contains further gate check-runs, they are not
	// considered.
	DuplicateOwn []*CheckRun
}

// Aggregate counts the check-runs that are not owned by the app with
// ownClientID and did not complete successfully.
// The first check-run owned by the app is returned as Result.Own.
func Aggregate(runs []*CheckRun, ownClientID string) *Result {
	var result Result

	for _, run := range runs {
		if run == nil {
			continue
		}

		if run.OwnedBy(ownClientID) {
			if result.Own == nil {
				result.Own = run
				continue
			}

			result.DuplicateOwn = append(result.DuplicateOwn, run)
			continue
		}

		if !run.Succeeded() {
			result.Uncompleted++
		}
	}

	return &result
}
