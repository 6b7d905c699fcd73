package vercel

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	appErr "github.com/appforge/engine/pkg/errors"
)

// Client is the deployment platform boundary the deployment provisioner
// depends on.
type Client interface {
	// CreateProject creates a platform project bound to the repository and
	// returns the platform project id.
	CreateProject(ctx context.Context, name, repoURL, framework string) (string, error)
	// SetEnvironmentVariable registers one encrypted variable scoped to
	// production, preview and development.
	SetEnvironmentVariable(ctx context.Context, projectID, key, value string) error
	// DisableProtection turns off the platform's SSO and password gates so
	// the production URL is publicly reachable.
	DisableProtection(ctx context.Context, projectID string) error
	// AwaitProduction polls the latest deployment until it is ready, then
	// resolves the production URL (conventional fallback when the platform
	// has not populated a production target yet).
	AwaitProduction(ctx context.Context, projectID, name string) (string, error)
}

// PollConfig bounds the deployment readiness wait.
type PollConfig struct {
	Timeout      time.Duration
	InitialDelay time.Duration
}

type client struct {
	http   *resty.Client
	teamID string
	poll   PollConfig
}

// NewClient builds a Vercel API client. teamID may be empty for personal
// accounts.
func NewClient(baseURL, token, teamID string, poll PollConfig) Client {
	if poll.Timeout <= 0 {
		poll.Timeout = 5 * time.Minute
	}
	if poll.InitialDelay <= 0 {
		poll.InitialDelay = 5 * time.Second
	}
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
		teamID: teamID,
		poll:   poll,
	}
}

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// ParseRepoRef extracts "owner/repo" from a repository URL.
func ParseRepoRef(repoURL string) (string, error) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", appErr.New(appErr.CodeInvalid, "repository url does not match the expected host pattern").
			WithMeta("repo_url", repoURL)
	}
	repo := strings.TrimSuffix(m[2], ".git")
	return m[1] + "/" + repo, nil
}

type projectResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Targets struct {
		Production struct {
			URL string `json:"url"`
		} `json:"production"`
	} `json:"targets"`
}

type deploymentsResponse struct {
	Deployments []struct {
		UID        string `json:"uid"`
		ReadyState string `json:"readyState"`
	} `json:"deployments"`
}

func (c *client) team() map[string]string {
	if c.teamID == "" {
		return map[string]string{}
	}
	return map[string]string{"teamId": c.teamID}
}

func (c *client) CreateProject(ctx context.Context, name, repoURL, framework string) (string, error) {
	ref, err := ParseRepoRef(repoURL)
	if err != nil {
		return "", err
	}
	if framework == "" {
		framework = "nextjs"
	}

	var project projectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.team()).
		SetBody(map[string]any{
			"name":      name,
			"framework": framework,
			"gitRepository": map[string]string{
				"type": "github",
				"repo": ref,
			},
		}).
		SetResult(&project).
		Post("/v9/projects")
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeExternal, "vercel project create failed")
	}
	if resp.IsError() {
		return "", appErr.External("vercel", resp.StatusCode())
	}
	if project.ID == "" {
		return "", appErr.New(appErr.CodeExternal, "vercel project create returned no id")
	}
	return project.ID, nil
}

func (c *client) SetEnvironmentVariable(ctx context.Context, projectID, key, value string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.team()).
		SetBody(map[string]any{
			"key":    key,
			"value":  value,
			"type":   "encrypted",
			"target": []string{"production", "preview", "development"},
		}).
		Post(fmt.Sprintf("/v10/projects/%s/env", projectID))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeExternal, "vercel env variable create failed")
	}
	if resp.IsError() {
		return appErr.External("vercel", resp.StatusCode()).WithMeta("key", key)
	}
	return nil
}

func (c *client) DisableProtection(ctx context.Context, projectID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.team()).
		SetBody(map[string]any{
			"ssoProtection":      nil,
			"passwordProtection": nil,
		}).
		Patch(fmt.Sprintf("/v9/projects/%s", projectID))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeExternal, "vercel protection disable failed")
	}
	if resp.IsError() {
		return appErr.External("vercel", resp.StatusCode())
	}
	return nil
}

func (c *client) AwaitProduction(ctx context.Context, projectID, name string) (string, error) {
	deadline := time.Now().Add(c.poll.Timeout)
	delay := c.poll.InitialDelay
	const maxDelay = 30 * time.Second

	for {
		ready, err := c.latestDeploymentReady(ctx, projectID)
		if err != nil {
			return "", err
		}
		if ready {
			return c.productionURL(ctx, name)
		}

		if time.Now().Add(delay).After(deadline) {
			return "", appErr.New(appErr.CodeDeadline, "deployment did not become ready in time").
				WithMeta("timeout", c.poll.Timeout.String())
		}
		select {
		case <-ctx.Done():
			return "", appErr.Wrap(ctx.Err(), appErr.CodeDeadline, "deployment wait canceled")
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *client) latestDeploymentReady(ctx context.Context, projectID string) (bool, error) {
	var out deploymentsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.team()).
		SetQueryParam("projectId", projectID).
		SetQueryParam("limit", "1").
		SetResult(&out).
		Get("/v6/deployments")
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeExternal, "vercel deployments lookup failed")
	}
	if resp.IsError() {
		return false, appErr.External("vercel", resp.StatusCode())
	}
	if len(out.Deployments) == 0 {
		// Build has not been registered yet; keep waiting.
		return false, nil
	}
	switch out.Deployments[0].ReadyState {
	case "READY":
		return true, nil
	case "ERROR", "CANCELED":
		return false, appErr.New(appErr.CodeExternal, "vercel deployment failed").
			WithMeta("ready_state", out.Deployments[0].ReadyState)
	default:
		return false, nil
	}
}

func (c *client) productionURL(ctx context.Context, name string) (string, error) {
	var project projectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.team()).
		SetResult(&project).
		Get(fmt.Sprintf("/v9/projects/%s", name))
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeExternal, "vercel project lookup failed")
	}
	if resp.IsError() {
		return "", appErr.External("vercel", resp.StatusCode())
	}
	if project.Targets.Production.URL != "" {
		return "https://" + project.Targets.Production.URL, nil
	}
	return fmt.Sprintf("https://%s.vercel.app", name), nil
}
