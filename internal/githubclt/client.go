// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/mergeguard/internal/auth"
	"github.com/simplesurance/mergeguard/internal/gate"
	"github.com/simplesurance/mergeguard/internal/guarderr"
	"github.com/simplesurance/mergeguard/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const DefaultAPIURL = "https://api.github.com"

const loggerName = "github_client"

const (
	mediaType  = "application/vnd.github+json"
	apiVersion = "2022-11-28"
)

const checkRunsPerPage = 100

const (
	opCreateInstallationToken = "create_installation_token"
	opListCheckRuns           = "list_check_runs"
	opCreateCheckRun          = "create_check_run"
	opUpdateCheckRun          = "update_check_run"
	opGetPullRequest          = "get_pull_request"
)

// Client is a github API client.
// The client is not bound to credentials, every method gets the token that
// is used for the API call passed.
// All API failures are returned as *guarderr.UpstreamError.
type Client struct {
	restURL    *url.URL
	graphQLURL string
	userAgent  string
	logger     *zap.Logger
}

// New returns a new github api client for the REST API at apiURL.
// For GitHub Enterprise, apiURL is https://HOSTNAME/api/v3.
func New(apiURL, userAgent string) (*Client, error) {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	restURL, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing api url failed: %w", err)
	}

	if restURL.Scheme != "http" && restURL.Scheme != "https" {
		return nil, fmt.Errorf("api url %q has an unsupported scheme, must be http or https", apiURL)
	}

	return &Client{
		restURL:    restURL,
		graphQLURL: graphQLURL(restURL),
		userAgent:  userAgent,
		logger:     zap.L().Named(loggerName),
	}, nil
}

func graphQLURL(restURL *url.URL) string {
	u := *restURL

	if path, found := strings.CutSuffix(u.Path, "/api/v3/"); found {
		u.Path = path + "/api/graphql"
		return u.String()
	}

	u.Path += "graphql"
	return u.String()
}

// headerTransport sets static headers on every request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header[k] = v
	}

	return t.base.RoundTrip(req)
}

func (clt *Client) newHTTPClient(apiToken string) *http.Client {
	base := &http.Client{
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: http.Header{
				"Accept":               []string{mediaType},
				"X-Github-Api-Version": []string{apiVersion},
				"User-Agent":           []string{clt.userAgent},
			},
		},
		Timeout: DefaultHTTPClientTimeout,
	}

	if apiToken == "" {
		return base
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken, TokenType: "Bearer"},
	)

	tc := oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, base), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

func (clt *Client) restClient(apiToken string) *github.Client {
	c := github.NewClient(clt.newHTTPClient(apiToken))
	c.BaseURL = clt.restURL
	c.UserAgent = clt.userAgent

	return c
}

func (clt *Client) graphQLClient(apiToken string) *githubv4.Client {
	return githubv4.NewEnterpriseClient(clt.graphQLURL, clt.newHTTPClient(apiToken))
}

func splitRepository(fullName string) (owner, name string, err error) {
	owner, name, found := strings.Cut(fullName, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not in the format OWNER/NAME", fullName)
	}

	return owner, name, nil
}

// CreateInstallationToken exchanges the app JWT for an access token of the
// installation.
func (clt *Client) CreateInstallationToken(ctx context.Context, jwt string, installationID int64) (*auth.InstallationToken, error) {
	tok, resp, err := clt.restClient(jwt).Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, clt.wrapError(opCreateInstallationToken, resp, err)
	}

	if tok.GetToken() == "" {
		return nil, guarderr.NewUpstreamError(opCreateInstallationToken, 0, errors.New("response contains an empty token"))
	}

	return &auth.InstallationToken{
		InstallationID: installationID,
		Token:          tok.GetToken(),
		ExpiresAt:      tok.GetExpiresAt().Time,
	}, nil
}

type checkRunList struct {
	TotalCount int              `json:"total_count"`
	CheckRuns  []*gate.CheckRun `json:"check_runs"`
}

// ListCheckRuns returns all check-runs of commit.
func (clt *Client) ListCheckRuns(ctx context.Context, token, repository, commit string) ([]*gate.CheckRun, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, guarderr.NewUpstreamError(opListCheckRuns, 0, err)
	}

	restClt := clt.restClient(token)

	var result []*gate.CheckRun
	for page := 1; page != 0; {
		u := fmt.Sprintf(
			"repos/%s/%s/commits/%s/check-runs?per_page=%d&page=%d",
			url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(commit), checkRunsPerPage, page,
		)

		req, err := restClt.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, guarderr.NewUpstreamError(opListCheckRuns, 0, err)
		}

		var list checkRunList
		resp, err := restClt.Do(ctx, req, &list)
		if err != nil {
			return nil, clt.wrapError(opListCheckRuns, resp, err)
		}

		result = append(result, list.CheckRuns...)

		if len(list.CheckRuns) == 0 {
			break
		}
		page = resp.NextPage
	}

	return result, nil
}

func toCheckRunOutput(o *gate.Output) *github.CheckRunOutput {
	if o == nil {
		return nil
	}

	return &github.CheckRunOutput{
		Title:   github.String(o.Title),
		Summary: github.String(o.Summary),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func fromGithubCheckRun(run *github.CheckRun) *gate.CheckRun {
	result := gate.CheckRun{
		ID:         run.GetID(),
		Name:       run.GetName(),
		HeadSHA:    run.GetHeadSHA(),
		Status:     run.GetStatus(),
		Conclusion: run.GetConclusion(),
	}

	if out := run.GetOutput(); out != nil {
		result.Output = &gate.Output{
			Title:   out.GetTitle(),
			Summary: out.GetSummary(),
		}
	}

	if app := run.GetApp(); app != nil {
		result.App = &gate.App{
			ID:   app.GetID(),
			Slug: app.GetSlug(),
			Name: app.GetName(),
		}
	}

	return &result
}

// CreateCheckRun creates run and returns the created check-run.
func (clt *Client) CreateCheckRun(ctx context.Context, token, repository string, run *gate.CheckRun) (*gate.CheckRun, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, guarderr.NewUpstreamError(opCreateCheckRun, 0, err)
	}

	created, resp, err := clt.restClient(token).Checks.CreateCheckRun(ctx, owner, repo, github.CreateCheckRunOptions{
		Name:       run.Name,
		HeadSHA:    run.HeadSHA,
		Status:     optionalString(run.Status),
		Conclusion: optionalString(run.Conclusion),
		Output:     toCheckRunOutput(run.Output),
	})
	if err != nil {
		return nil, clt.wrapError(opCreateCheckRun, resp, err)
	}

	clt.logger.Debug(
		"check-run created",
		logfields.Event("github_check_run_created"),
		logfields.Repository(repository),
		logfields.Commit(run.HeadSHA),
		logfields.CheckRunID(created.GetID()),
	)

	return fromGithubCheckRun(created), nil
}

// UpdateCheckRun updates the check-run with the ID run.ID.
func (clt *Client) UpdateCheckRun(ctx context.Context, token, repository string, run *gate.CheckRun) (*gate.CheckRun, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, guarderr.NewUpstreamError(opUpdateCheckRun, 0, err)
	}

	if run.ID == 0 {
		return nil, guarderr.NewUpstreamError(opUpdateCheckRun, 0, errors.New("check-run id is 0"))
	}

	updated, resp, err := clt.restClient(token).Checks.UpdateCheckRun(ctx, owner, repo, run.ID, github.UpdateCheckRunOptions{
		Name:       run.Name,
		Status:     optionalString(run.Status),
		Conclusion: optionalString(run.Conclusion),
		Output:     toCheckRunOutput(run.Output),
	})
	if err != nil {
		return nil, clt.wrapError(opUpdateCheckRun, resp, err)
	}

	clt.logger.Debug(
		"check-run updated",
		logfields.Event("github_check_run_updated"),
		logfields.Repository(repository),
		logfields.CheckRunID(run.ID),
	)

	return fromGithubCheckRun(updated), nil
}

func (clt *Client) wrapError(op string, resp *github.Response, err error) error {
	statusCode := 0
	if resp != nil && resp.Response != nil {
		statusCode = resp.StatusCode
	}

	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.String("operation", op),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

	case *github.ErrorResponse:
		if v.Response != nil {
			statusCode = v.Response.StatusCode
		}
	}

	return guarderr.NewUpstreamError(op, statusCode, err)
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLError(op string, err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return guarderr.NewUpstreamError(op, 0, err)
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return guarderr.NewUpstreamError(op, 0, err)
	}

	return guarderr.NewUpstreamError(op, errcode, err)
}
