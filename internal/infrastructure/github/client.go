package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"gissues/internal/bootstrap/config"
	"gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

const defaultPerPage = 100

// Client is the mirror's only way to reach GitHub. Construct one per process and inject it.
type Client struct {
	gh      *gh.Client
	perPage int
}

var _ ports.RemoteClient = (*Client)(nil)

// NewClient builds the transport chain auth -> instrumented (rate limit, headers, logs)
// -> base. A nil base uses http.DefaultTransport.
func NewClient(cfg config.GitHubConfig, base http.RoundTripper) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("github base url is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errs.Wrapf(err, "parse github base url %q", cfg.BaseURL)
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	var transport http.RoundTripper = newInstrumentedTransport(base, limiter, cfg.APIVersion)
	switch {
	case cfg.App.AppID != 0:
		installation, err := ghinstallation.NewKeyFromFile(transport, cfg.App.AppID, cfg.App.InstallationID, cfg.App.PrivateKeyPath)
		if err != nil {
			return nil, errs.Wrap(err, "load github app key")
		}
		installation.BaseURL = strings.TrimSuffix(baseURL, "/")
		transport = installation
	case strings.TrimSpace(cfg.Token) != "":
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.Token), TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	client := gh.NewClient(&http.Client{Transport: transport, Timeout: cfg.Timeout})
	client.BaseURL = parsed

	perPage := cfg.PerPage
	if perPage <= 0 || perPage > defaultPerPage {
		perPage = defaultPerPage
	}
	return &Client{gh: client, perPage: perPage}, nil
}

func (c *Client) FetchRepository(ctx context.Context, owner string, name string) (*gh.Repository, error) {
	repository, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classify(resp, err)
	}
	return repository, nil
}

func (c *Client) FetchIssueList(ctx context.Context, owner string, name string) ([]*gh.Issue, error) {
	return collectPages(c.perPage, func(list gh.ListOptions) ([]*gh.Issue, *gh.Response, error) {
		return c.gh.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
			State:       "all",
			ListOptions: list,
		})
	})
}

func (c *Client) FetchIssueDetail(ctx context.Context, owner string, name string, number int) (*gh.Issue, error) {
	issue, resp, err := c.gh.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return nil, classify(resp, err)
	}
	return issue, nil
}

func (c *Client) FetchCommentList(ctx context.Context, owner string, name string, issueNumber int) ([]*gh.IssueComment, error) {
	if issueNumber <= 0 {
		// go-github treats number 0 as "all comments in the repository".
		return nil, mirror.Validationf("issue number must be positive, got %d", issueNumber)
	}
	return collectPages(c.perPage, func(list gh.ListOptions) ([]*gh.IssueComment, *gh.Response, error) {
		return c.gh.Issues.ListComments(ctx, owner, name, issueNumber, &gh.IssueListCommentsOptions{
			ListOptions: list,
		})
	})
}

func (c *Client) FetchCommentDetail(ctx context.Context, owner string, name string, commentID int64) (*gh.IssueComment, error) {
	comment, resp, err := c.gh.Issues.GetComment(ctx, owner, name, commentID)
	if err != nil {
		return nil, classify(resp, err)
	}
	return comment, nil
}

func (c *Client) FetchUserRepositories(ctx context.Context, username string) ([]*gh.Repository, error) {
	return collectPages(c.perPage, func(list gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
		return c.gh.Repositories.ListByUser(ctx, username, &gh.RepositoryListByUserOptions{
			Type:        "owner",
			ListOptions: list,
		})
	})
}

// collectPages follows Link pagination until GitHub reports no next page.
func collectPages[T any](perPage int, fetch func(gh.ListOptions) ([]T, *gh.Response, error)) ([]T, error) {
	list := gh.ListOptions{PerPage: perPage}
	var all []T
	for {
		page, resp, err := fetch(list)
		if err != nil {
			return nil, classify(resp, err)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		list.Page = resp.NextPage
	}
}
