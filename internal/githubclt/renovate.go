package githubclt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"github.com/itchyny/gojq"
)

// IsRenovatePR reports whether the pull request was opened by a
// dependency-update bot.
// The decision is heuristic: the author must be a bot account and the PR must
// carry at least one renovate indicator in its author name, branch name,
// title or body.
func IsRenovatePR(pr *github.PullRequest) bool {
	login := strings.ToLower(pr.GetUser().GetLogin())
	title := strings.ToLower(pr.GetTitle())
	body := strings.ToLower(pr.GetBody())
	branch := strings.ToLower(pr.GetHead().GetRef())

	isBot := pr.GetUser().GetType() == "Bot" || strings.HasSuffix(login, "[bot]")

	hasIndicator := strings.Contains(login, "renovate") ||
		strings.Contains(login, "dependabot") ||
		strings.HasPrefix(branch, "renovate/") ||
		strings.HasPrefix(branch, "dependabot/") ||
		strings.Contains(title, "renovate") ||
		strings.Contains(body, "renovate")

	return isBot && hasIndicator
}

// PRFilter matches pull requests against a jq expression.
// The expression is evaluated against the JSON representation of the pull
// request and matches when it evaluates to true.
type PRFilter struct {
	query *gojq.Code
}

// NewPRFilter compiles the jq expression.
// An empty expression is valid, the returned filter matches nothing.
func NewPRFilter(jqQuery string) (*PRFilter, error) {
	if jqQuery == "" {
		return &PRFilter{}, nil
	}

	parsed, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing jq query failed: %w", err)
	}

	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compiling jq query failed: %w", err)
	}

	return &PRFilter{query: code}, nil
}

// Match evaluates the filter against the pull request.
func (f *PRFilter) Match(pr *github.PullRequest) (bool, error) {
	if f.query == nil {
		return false, nil
	}

	payload, err := json.Marshal(pr)
	if err != nil {
		return false, fmt.Errorf("marshalling pull request to json failed: %w", err)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false, fmt.Errorf("unmarshalling pull request json failed: %w", err)
	}

	iter := f.query.Run(doc)
	for {
		v, hasNext := iter.Next()
		if !hasNext {
			return false, nil
		}

		if err, ok := v.(error); ok {
			return false, fmt.Errorf("evaluating jq query failed: %w", err)
		}

		if matched, ok := v.(bool); ok && matched {
			return true, nil
		}
	}
}
