// Package mergeguard keeps the gate check-run of commits up to date.
package mergeguard

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/auth"
	"github.com/simplesurance/mergeguard/internal/gate"
	"github.com/simplesurance/mergeguard/internal/guarderr"
	"github.com/simplesurance/mergeguard/internal/jobqueue"
	"github.com/simplesurance/mergeguard/internal/logfields"
	github_prov "github.com/simplesurance/mergeguard/internal/provider/github"
)

const loggerName = "mergeguard"

// RefreshCommand triggers recomputing the gate of a pull request when it is
// part of a pull request comment.
const RefreshCommand = "/mergeguard refresh"

//go:generate go run go.uber.org/mock/mockgen@v0.4.0 -package=mocks -destination=mocks/apigateway.go . APIGateway

// GithubClient is the part of the GitHub API that is used to manage gate
// check-runs.
type GithubClient interface {
	ListCheckRuns(ctx context.Context, token, repository, commit string) ([]*gate.CheckRun, error)
	CreateCheckRun(ctx context.Context, token, repository string, run *gate.CheckRun) (*gate.CheckRun, error)
	UpdateCheckRun(ctx context.Context, token, repository string, run *gate.CheckRun) (*gate.CheckRun, error)
	PullRequestHeadCommit(ctx context.Context, token, repository string, number int) (string, error)
}

// APIGateway is the complete GitHub API that is used by mergeguard.
type APIGateway interface {
	auth.TokenMinter
	GithubClient
}

// TokenSource provides access tokens for GitHub App installations.
type TokenSource interface {
	Token(ctx context.Context, installationID int64) (string, error)
}

// Guard processes GitHub webhook events and creates and updates the gate
// check-runs.
// When a queue is configured, check_run events are enqueued instead of
// being processed immediately.
type Guard struct {
	clt      GithubClient
	tokens   TokenSource
	clientID string
	queue    *jobqueue.Queue
	logger   *zap.Logger
}

type Option func(*Guard)

// WithQueue enables the queued mode, check_run events are added to q.
func WithQueue(q *jobqueue.Queue) Option {
	return func(g *Guard) {
		g.queue = q
	}
}

// New returns a Guard. clientID is the client ID of the GitHub App, it
// identifies the gate check-runs.
func New(clt GithubClient, tokens TokenSource, clientID string, opts ...Option) *Guard {
	g := Guard{
		clt:      clt,
		tokens:   tokens,
		clientID: clientID,
		logger:   zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&g)
	}

	return &g
}

// HandleEvent processes a webhook event.
// For unsupported events an error wrapping guarderr.ErrEventNotImplemented
// is returned.
func (g *Guard) HandleEvent(ctx context.Context, ev *github_prov.Event) error {
	metrics.ProcessedEventsInc(ev.Kind)

	logger := g.logger.With(ev.LogFields...)

	var err error
	switch ev.Kind {
	case github_prov.EventKindPullRequest:
		err = g.onPullRequest(ctx, logger, ev)

	case github_prov.EventKindCheckRun:
		err = g.onCheckRun(ctx, logger, ev)

	case github_prov.EventKindIssueComment:
		err = g.onIssueComment(ctx, logger, ev)

	default:
		logger.Debug(
			"ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)
		return fmt.Errorf("%s: %w", ev.Type, guarderr.ErrEventNotImplemented)
	}

	if err != nil && guarderr.IsUpstream(err) {
		metrics.UpstreamFailuresInc()
	}

	return err
}

func (g *Guard) onPullRequest(ctx context.Context, logger *zap.Logger, ev *github_prov.Event) error {
	switch ev.Action {
	case "opened", "synchronize":
		_, err := g.CreateGate(ctx, ev.InstallationID, ev.Repository, ev.Commit)
		return err

	default:
		logger.Debug(
			"ignoring pull_request event, action is not relevant",
			logfields.Event("github_event_ignored"),
		)
		return nil
	}
}

func (g *Guard) onCheckRun(ctx context.Context, logger *zap.Logger, ev *github_prov.Event) error {
	if ev.CheckRun.OwnedBy(g.clientID) {
		logger.Debug(
			"ignoring check_run event of own check-run",
			logfields.Event("github_own_check_run_event_ignored"),
			logfields.CheckRunID(ev.CheckRun.ID),
		)
		return nil
	}

	if g.queue != nil {
		g.queue.Enqueue(jobqueue.Job{
			InstallationID: ev.InstallationID,
			Repository:     ev.Repository,
			Commit:         ev.Commit,
		})

		logger.Debug("gate refresh enqueued", logfields.Event("gate_refresh_enqueued"))
		return nil
	}

	return g.RefreshGate(ctx, ev.InstallationID, ev.Repository, ev.Commit)
}

func (g *Guard) onIssueComment(ctx context.Context, logger *zap.Logger, ev *github_prov.Event) error {
	if ev.Action != "created" {
		logger.Debug(
			"ignoring issue_comment event, action is not relevant",
			logfields.Event("github_event_ignored"),
		)
		return nil
	}

	if !strings.Contains(ev.CommentBody, RefreshCommand) {
		logger.Debug(
			"ignoring issue_comment event, comment contains no command",
			logfields.Event("github_event_ignored"),
		)
		return nil
	}

	if ev.PullRequestNumber == 0 {
		logger.Info(
			"ignoring refresh command, comment is not part of a pull request",
			logfields.Event("github_refresh_command_ignored"),
		)
		return nil
	}

	logger.Info("refresh command received", logfields.Event("github_refresh_command_received"))

	token, err := g.tokens.Token(ctx, ev.InstallationID)
	if err != nil {
		return err
	}

	commit, err := g.clt.PullRequestHeadCommit(ctx, token, ev.Repository, ev.PullRequestNumber)
	if err != nil {
		return fmt.Errorf("retrieving head commit of pull request #%d failed: %w", ev.PullRequestNumber, err)
	}

	return g.RefreshGate(ctx, ev.InstallationID, ev.Repository, commit)
}

// CreateGate creates a pending gate check-run for commit.
// It does not check if a gate check-run for commit already exists.
func (g *Guard) CreateGate(ctx context.Context, installationID int64, repository, commit string) (*gate.CheckRun, error) {
	logger := g.logger.With(
		logfields.Installation(installationID),
		logfields.Repository(repository),
		logfields.Commit(commit),
	)

	token, err := g.tokens.Token(ctx, installationID)
	if err != nil {
		return nil, err
	}

	run, err := g.clt.CreateCheckRun(ctx, token, repository, gate.NewCheckRun(commit))
	if err != nil {
		return nil, fmt.Errorf("creating gate check-run failed: %w", err)
	}

	metrics.GateOperationsInc(gate.ActionCreate)

	logger.Info(
		"gate check-run created",
		logfields.Event("gate_created"),
		logfields.CheckRunID(run.ID),
	)

	return run, nil
}

// Status returns the aggregated state of the check-runs of commit.
func (g *Guard) Status(ctx context.Context, installationID int64, repository, commit string) (*gate.Result, error) {
	token, err := g.tokens.Token(ctx, installationID)
	if err != nil {
		return nil, err
	}

	runs, err := g.clt.ListCheckRuns(ctx, token, repository, commit)
	if err != nil {
		return nil, fmt.Errorf("retrieving check-runs failed: %w", err)
	}

	logger := g.logger.With(
		logfields.Installation(installationID),
		logfields.Repository(repository),
		logfields.Commit(commit),
	)

	if len(runs) == 0 {
		logger.Warn(
			"commit has no check-runs",
			logfields.Event("commit_without_check_runs"),
		)
	}

	result := gate.Aggregate(runs, g.clientID)

	for _, dup := range result.DuplicateOwn {
		logger.Warn(
			"found multiple gate check-runs, ignoring duplicate",
			logfields.Event("duplicate_gate_check_run"),
			logfields.CheckRunID(dup.ID),
			logfields.CheckRunName(dup.Name),
		)
	}

	return result, nil
}

// RefreshGate recomputes the state of the gate check-run of commit and
// updates it if it changed.
// If no gate check-run exists, it is created.
func (g *Guard) RefreshGate(ctx context.Context, installationID int64, repository, commit string) error {
	logger := g.logger.With(
		logfields.Installation(installationID),
		logfields.Repository(repository),
		logfields.Commit(commit),
	)

	result, err := g.Status(ctx, installationID, repository, commit)
	if err != nil {
		return err
	}

	action, run := gate.Decide(result.Uncompleted, result.Own, commit)
	switch action {
	case gate.ActionNone:
		logger.Debug(
			"gate check-run is up to date",
			logfields.Event("gate_up_to_date"),
			zap.Int("uncompleted_check_runs", result.Uncompleted),
		)
		return nil

	case gate.ActionCreate:
		token, err := g.tokens.Token(ctx, installationID)
		if err != nil {
			return err
		}

		run, err = g.clt.CreateCheckRun(ctx, token, repository, run)
		if err != nil {
			return fmt.Errorf("creating gate check-run failed: %w", err)
		}

	case gate.ActionUpdate:
		token, err := g.tokens.Token(ctx, installationID)
		if err != nil {
			return err
		}

		run, err = g.clt.UpdateCheckRun(ctx, token, repository, run)
		if err != nil {
			return fmt.Errorf("updating gate check-run failed: %w", err)
		}
	}

	metrics.GateOperationsInc(action)

	logger.Info(
		"gate check-run refreshed",
		logfields.Event("gate_refreshed"),
		zap.Stringer("gate_action", action),
		logfields.CheckRunID(run.ID),
		zap.String("gate_status", run.Status),
		zap.Int("uncompleted_check_runs", result.Uncompleted),
	)

	return nil
}

// ProcessJob refreshes the gate of the commit of job.
func (g *Guard) ProcessJob(ctx context.Context, job jobqueue.Job) error {
	err := g.RefreshGate(ctx, job.InstallationID, job.Repository, job.Commit)
	if err != nil && guarderr.IsUpstream(err) {
		metrics.UpstreamFailuresInc()
	}

	return err
}
