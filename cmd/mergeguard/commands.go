package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/auth"
	"github.com/simplesurance/mergeguard/internal/cfg"
	"github.com/simplesurance/mergeguard/internal/githubclt"
	"github.com/simplesurance/mergeguard/internal/jobqueue"
	"github.com/simplesurance/mergeguard/internal/logfields"
	"github.com/simplesurance/mergeguard/internal/mergeguard"
	github_prov "github.com/simplesurance/mergeguard/internal/provider/github"
	"github.com/simplesurance/mergeguard/internal/server"
	"github.com/simplesurance/mergeguard/internal/tracing"
)

const commandTimeout = 2 * time.Minute

type components struct {
	tokens *auth.TokenCache
	guard  *mergeguard.Guard
	queue  *jobqueue.Queue
}

func newComponents(config *cfg.Config, queued bool) (*components, error) {
	clt, err := githubclt.New(config.GithubAPIURL, appName+"/"+Version)
	if err != nil {
		return nil, fmt.Errorf("creating github client failed: %w", err)
	}

	signer, err := auth.NewSignerFromFile(config.GithubAppClientID, config.GithubAppPrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading github app private key failed: %w", err)
	}

	c := components{tokens: auth.NewTokenCache(signer, clt)}

	var opts []mergeguard.Option
	if queued {
		c.queue = jobqueue.NewQueue()
		opts = append(opts, mergeguard.WithQueue(c.queue))
	}

	c.guard = mergeguard.New(clt, c.tokens, config.GithubAppClientID, opts...)

	return &c, nil
}

func runServer(config *cfg.Config) {
	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("github_app_client_id", config.GithubAppClientID),
		zap.String("github_app_private_key_file", config.GithubAppPrivateKeyFile),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Int("periodic_refresh", config.PeriodicRefresh),
		zap.Int("refresh_workers", config.RefreshWorkers),
		zap.String("otel_endpoint", config.OtelEndpoint),
		zap.Float64("otel_sample_ratio", config.OtelSampleRatio),
	)

	if config.GithubWebHookSecret == "" {
		logger.Warn(
			"github_webhook_secret is not set, webhook signatures are not verified",
			logfields.Event("webhook_verification_disabled"),
		)
	}

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	tp, err := tracing.Setup(context.Background(), &tracing.Config{
		Endpoint:    config.OtelEndpoint,
		ServiceName: appName,
		Version:     Version,
		SampleRatio: config.OtelSampleRatio,
	})
	exitOnErr("could not initialize tracing", err)

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFn()

		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn(
				"flushing traces failed",
				logfields.Event("tracing_shutdown_failed"),
				zap.Error(err),
			)
		}
	}, prioTracing)

	c, err := newComponents(config, config.PeriodicRefresh > 0)
	exitOnErr("could not initialize github app client", err)

	if c.queue != nil {
		scheduler := jobqueue.NewScheduler(
			c.queue,
			config.RefreshInterval(),
			c.guard.ProcessJob,
			jobqueue.WithWorkers(config.RefreshWorkers),
		)
		scheduler.Start()

		goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
			logger.Debug(
				"stopping refresh scheduler",
				logfields.Event("scheduler_stopping"),
			)
			scheduler.Stop()
		}, prioScheduler)
	}

	gh := github_prov.New(
		c.guard,
		github_prov.WithPayloadSecret(config.GithubWebHookSecret),
	)

	srv := server.New(server.Config{
		HTTPListenAddr:  config.HTTPListenAddr,
		HTTPSListenAddr: config.HTTPSListenAddr,
		HTTPSCertFile:   config.HTTPSCertFile,
		HTTPSKeyFile:    config.HTTPSKeyFile,
		WebhookEndpoint: config.HTTPGithubWebhookEndpoint,
	}, http.HandlerFunc(gh.HTTPHandler))

	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http servers",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn(
				"shutting down http servers failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	}, prioHTTPServer)

	if err := srv.Start(); err != nil {
		logger.Error(
			"starting http servers failed",
			logfields.Event("http_server_start_failed"),
			zap.Error(err),
		)
		goodbye.Exit(context.Background(), 1)
	}

	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	// goodbye terminates the process when a signal is received
	select {}
}

func parseJobArgs(cmdArgs []string) (*jobqueue.Job, error) {
	if len(cmdArgs) != 3 {
		return nil, errors.New("expecting 3 arguments: INSTALLATION-ID REPOSITORY COMMIT")
	}

	installationID, err := strconv.ParseInt(cmdArgs[0], 10, 64)
	if err != nil || installationID <= 0 {
		return nil, fmt.Errorf("invalid installation id: %q", cmdArgs[0])
	}

	repo := cmdArgs[1]
	if owner, name, found := strings.Cut(repo, "/"); !found || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q, expecting OWNER/NAME", repo)
	}

	if cmdArgs[2] == "" {
		return nil, errors.New("commit is empty")
	}

	return &jobqueue.Job{
		InstallationID: installationID,
		Repository:     repo,
		Commit:         cmdArgs[2],
	}, nil
}

func runCommand(cmd string, config *cfg.Config, job *jobqueue.Job) error {
	c, err := newComponents(config, false)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), commandTimeout)
	defer cancelFn()

	switch cmd {
	case "create":
		run, err := c.guard.CreateGate(ctx, job.InstallationID, job.Repository, job.Commit)
		if err != nil {
			return err
		}

		fmt.Printf("created check-run %d: %s\n", run.ID, run)

	case "refresh":
		return c.guard.RefreshGate(ctx, job.InstallationID, job.Repository, job.Commit)

	case "status":
		// force a token exchange, it verifies the app credentials
		c.tokens.Invalidate(job.InstallationID)

		result, err := c.guard.Status(ctx, job.InstallationID, job.Repository, job.Commit)
		if err != nil {
			return err
		}

		fmt.Printf("uncompleted check-runs: %d\n", result.Uncompleted)
		if result.Own == nil {
			fmt.Println("gate check-run: none")
		} else {
			fmt.Printf("gate check-run: %s\n", result.Own)
		}

		for _, dup := range result.DuplicateOwn {
			fmt.Printf("duplicate gate check-run: %s\n", dup)
		}

	default:
		return fmt.Errorf("unsupported command: %q", cmd)
	}

	return nil
}
