package logfields

import "go.uber.org/zap"

func PullRequest(val int) zap.Field {
	return zap.Int("github.pull_request", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func Commit(val string) zap.Field {
	return zap.String("git.commit", val)
}

func Installation(val int64) zap.Field {
	return zap.Int64("github.installation_id", val)
}

func CheckRunID(val int64) zap.Field {
	return zap.Int64("github.check_run_id", val)
}

func CheckRunName(val string) zap.Field {
	return zap.String("github.check_run_name", val)
}
