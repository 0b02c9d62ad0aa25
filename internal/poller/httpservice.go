package poller

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/renowatch/renowatch/internal/logfields"
)

// RepositoryStatus is the scheduling state of one repository as exposed
// on the status endpoint.
type RepositoryStatus struct {
	LastPollTime          *time.Time `json:"last_poll_time"`
	ActivityScore         float64    `json:"activity_score"`
	ConsecutiveEmptyPolls int        `json:"consecutive_empty_polls"`
	CurrentInterval       string     `json:"current_interval"`
	TotalPolls            uint64     `json:"total_polls"`
	TotalPRsFound         uint64     `json:"total_prs_found"`
}

// StatusReport is the payload of the status endpoint.
type StatusReport struct {
	Running             bool                        `json:"running"`
	ConsecutiveFailures int                         `json:"consecutive_failures"`
	Repositories        map[string]RepositoryStatus `json:"repositories"`
}

// Status returns the current state of the poller and its tracked
// repositories.
func (p *Poller) Status() *StatusReport {
	p.mu.Lock()
	running := p.running
	failures := p.failureCount
	repos := p.lastRepos
	p.mu.Unlock()

	report := &StatusReport{
		Running:             running,
		ConsecutiveFailures: failures,
		Repositories:        map[string]RepositoryStatus{},
	}

	for _, repo := range repos {
		act, exists := p.activity.Snapshot(repo.String())
		if !exists {
			continue
		}

		report.Repositories[repo.String()] = RepositoryStatus{
			LastPollTime:          act.LastPollTime,
			ActivityScore:         act.ActivityScore,
			ConsecutiveEmptyPolls: act.ConsecutiveEmptyPolls,
			CurrentInterval:       act.CurrentInterval.String(),
			TotalPolls:            act.TotalPolls,
			TotalPRsFound:         act.TotalPRsFound,
		}
	}

	return report
}

// HTTPHandler returns a handler that serves the poller status as JSON.
func (p *Poller) HTTPHandler(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(p.Status()); err != nil {
			logger.Warn(
				"writing status response failed",
				logfields.Event("status_response_write_failed"),
				zap.Error(err),
			)
		}
	})
}
