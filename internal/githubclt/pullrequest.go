package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/simplesurance/mergeguard/internal/guarderr"
)

// PullRequestHeadCommit returns the SHA of the head commit of a pull request.
func (clt *Client) PullRequestHeadCommit(ctx context.Context, token, repository string, number int) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", guarderr.NewUpstreamError(opGetPullRequest, 0, err)
	}

	var q struct {
		Repository struct {
			PullRequest struct {
				Number     int
				HeadRefOid string
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(number),
	}

	if err := clt.graphQLClient(token).Query(ctx, &q, vars); err != nil {
		return "", clt.wrapGraphQLError(opGetPullRequest, err)
	}

	if q.Repository.PullRequest.HeadRefOid == "" {
		return "", guarderr.NewUpstreamError(
			opGetPullRequest, 0,
			fmt.Errorf("pull request #%d: response contains no head commit", number),
		)
	}

	return q.Repository.PullRequest.HeadRefOid, nil
}
