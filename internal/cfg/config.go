// Package cfg loads the renowatch configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
)

// Defaults applied in Load() for unset fields.
const (
	DefBaseIntervalSeconds           = 120
	DefMinIntervalSeconds            = 60
	DefMaxIntervalSeconds            = 600
	DefConcurrentRepos               = 5
	DefRepoTimeoutSeconds            = 300
	DefAPIUsageThreshold             = 0.8
	DefRateLimitCheckIntervalSeconds = 60
	DefMaxConsecutiveFailures        = 5
	DefDashboardIssueTitle           = "Dependency Update Dashboard"
)

type Config struct {
	GithubAPIToken      string `toml:"github_api_token"`
	GithubOrganization  string `toml:"github_organization"`
	DashboardIssueTitle string `toml:"dashboard_issue_title"`
	// Repositories is an explicit allow-list of repositories (owner/name)
	// to monitor. When empty, the repositories of GithubOrganization are
	// discovered via the API.
	Repositories []string `toml:"repositories"`
	// PRFilterQuery is an optional jq expression evaluated against the
	// JSON representation of a pull request. When it evaluates to true the
	// PR is treated as a dependency-update PR, in addition to the builtin
	// bot heuristics.
	PRFilterQuery string `toml:"pr_filter_query"`

	HTTPListenAddr            string `toml:"http_listen_addr"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret"`

	LogFormat  string `toml:"log_format"`
	LogTimeKey string `toml:"log_time_key"`
	LogLevel   string `toml:"log_level"`

	Polling   Polling   `toml:"polling"`
	Processor Processor `toml:"processor"`
}

type Processor struct {
	// AutoApprove enables approving dependency update PRs whose checks
	// passed.
	AutoApprove bool `toml:"auto_approve"`
	// FixLockfiles enables pushing lockfile fix commits to dependency
	// update PRs whose checks failed.
	FixLockfiles bool `toml:"fix_lockfiles"`
}

type Polling struct {
	Enabled  bool `toml:"enabled"`
	Adaptive bool `toml:"adaptive"`

	BaseIntervalSeconds int `toml:"base_interval_seconds"`
	MinIntervalSeconds  int `toml:"min_interval_seconds"`
	MaxIntervalSeconds  int `toml:"max_interval_seconds"`

	ConcurrentRepos    int `toml:"concurrent_repos"`
	RepoTimeoutSeconds int `toml:"repo_timeout_seconds"`

	APIUsageThreshold             float64 `toml:"api_usage_threshold"`
	RateLimitCheckIntervalSeconds int     `toml:"rate_limit_check_interval_seconds"`

	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
}

func (p *Polling) BaseInterval() time.Duration {
	return time.Duration(p.BaseIntervalSeconds) * time.Second
}

func (p *Polling) MinInterval() time.Duration {
	return time.Duration(p.MinIntervalSeconds) * time.Second
}

func (p *Polling) MaxInterval() time.Duration {
	return time.Duration(p.MaxIntervalSeconds) * time.Second
}

func (p *Polling) RepoTimeout() time.Duration {
	return time.Duration(p.RepoTimeoutSeconds) * time.Second
}

func (p *Polling) RateLimitCheckInterval() time.Duration {
	return time.Duration(p.RateLimitCheckIntervalSeconds) * time.Second
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "logfmt"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = "time"
	}

	if c.DashboardIssueTitle == "" {
		c.DashboardIssueTitle = DefDashboardIssueTitle
	}

	p := &c.Polling

	if p.BaseIntervalSeconds == 0 {
		p.BaseIntervalSeconds = DefBaseIntervalSeconds
	}

	if p.MinIntervalSeconds == 0 {
		p.MinIntervalSeconds = DefMinIntervalSeconds
	}

	if p.MaxIntervalSeconds == 0 {
		p.MaxIntervalSeconds = DefMaxIntervalSeconds
	}

	if p.ConcurrentRepos == 0 {
		p.ConcurrentRepos = DefConcurrentRepos
	}

	if p.RepoTimeoutSeconds == 0 {
		p.RepoTimeoutSeconds = DefRepoTimeoutSeconds
	}

	if p.APIUsageThreshold == 0 {
		p.APIUsageThreshold = DefAPIUsageThreshold
	}

	if p.RateLimitCheckIntervalSeconds == 0 {
		p.RateLimitCheckIntervalSeconds = DefRateLimitCheckIntervalSeconds
	}

	if p.MaxConsecutiveFailures == 0 {
		p.MaxConsecutiveFailures = DefMaxConsecutiveFailures
	}
}

func (c *Config) validate() error {
	if c.GithubOrganization == "" && len(c.Repositories) == 0 {
		return errors.New("github_organization or repositories must be set")
	}

	p := &c.Polling

	if p.MinIntervalSeconds > p.BaseIntervalSeconds {
		return fmt.Errorf("polling.min_interval_seconds (%d) must be <= polling.base_interval_seconds (%d)",
			p.MinIntervalSeconds, p.BaseIntervalSeconds)
	}

	if p.BaseIntervalSeconds > p.MaxIntervalSeconds {
		return fmt.Errorf("polling.base_interval_seconds (%d) must be <= polling.max_interval_seconds (%d)",
			p.BaseIntervalSeconds, p.MaxIntervalSeconds)
	}

	if p.APIUsageThreshold <= 0 || p.APIUsageThreshold >= 1 {
		return fmt.Errorf("polling.api_usage_threshold is %v, must be in (0, 1)",
			p.APIUsageThreshold)
	}

	if p.ConcurrentRepos < 1 {
		return fmt.Errorf("polling.concurrent_repos is %d, must be >=1", p.ConcurrentRepos)
	}

	return nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
