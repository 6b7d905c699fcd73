package github

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	appErr "github.com/appforge/engine/pkg/errors"
)

// Client is the source-control host boundary the repository provisioner
// depends on.
type Client interface {
	// Username resolves the acting identity: the configured username if
	// one was supplied, otherwise the token's authenticated user (cached).
	Username(ctx context.Context) (string, error)
	RepositoryExists(ctx context.Context, name string) (bool, error)
	// CreateRepository creates a public, non-auto-initialized repository
	// and returns its public URL.
	CreateRepository(ctx context.Context, name, description string) (string, error)
}

type client struct {
	http *resty.Client

	mu       sync.Mutex
	username string
}

// NewClient builds a GitHub REST client for the given token. username may be
// empty, in which case it is resolved lazily from the token.
func NewClient(baseURL, token, username string) Client {
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetHeader("Accept", "application/vnd.github+json").
			SetTimeout(30 * time.Second),
		username: username,
	}
}

type userResponse struct {
	Login string `json:"login"`
}

type repoResponse struct {
	HTMLURL string `json:"html_url"`
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

func (c *client) Username(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.username != "" {
		return c.username, nil
	}

	var user userResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/user")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeExternal, "github user lookup failed")
	}
	if resp.IsError() {
		return "", appErr.External("github", resp.StatusCode())
	}
	if user.Login == "" {
		return "", appErr.New(appErr.CodeExternal, "github user lookup returned no login")
	}
	c.username = user.Login
	return c.username, nil
}

func (c *client) RepositoryExists(ctx context.Context, name string) (bool, error) {
	owner, err := c.Username(ctx)
	if err != nil {
		return false, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/repos/%s/%s", owner, name))
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeExternal, "github repository lookup failed")
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, appErr.External("github", resp.StatusCode())
	}
	return true, nil
}

func (c *client) CreateRepository(ctx context.Context, name, description string) (string, error) {
	var repo repoResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createRepoRequest{Name: name, Description: description}).
		SetResult(&repo).
		Post("/user/repos")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeExternal, "github repository create failed")
	}
	if resp.IsError() {
		return "", appErr.External("github", resp.StatusCode())
	}
	if repo.HTMLURL == "" {
		return "", appErr.New(appErr.CodeExternal, "github repository create returned no url")
	}
	return repo.HTMLURL, nil
}
