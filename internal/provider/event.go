package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// Event is a preprocessed webhook notification.
type Event struct {
	JSON     []byte
	Provider string

	// GitHub hook fields, if the value is not available they are empty
	// strings.
	DeliveryID      string
	EventType       string
	Repository      string
	RepositoryOwner string
	CommitID        string
	Branch          string
	// PullRequestNr is 0 if it's not available
	PullRequestNr int
	// PullRequestAuthor is the login of the account that opened the pull
	// request.
	PullRequestAuthor string
}

func (e *Event) String() string {
	return fmt.Sprintf("%s (deliveryID: %s)", e.EventType, e.DeliveryID)
}

func (e *Event) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 6) // cap == max. size of fields we append

	if e.DeliveryID != "" {
		fields = append(fields, zap.String("github.delivery_id", e.DeliveryID))
	}

	if e.Repository != "" {
		fields = append(fields, zap.String("github.repository", e.Repository))
	}

	if e.RepositoryOwner != "" {
		fields = append(fields, zap.String("github.repository_owner", e.RepositoryOwner))
	}

	if e.CommitID != "" {
		fields = append(fields, zap.String("git.commit_id", e.CommitID))
	}

	if e.Branch != "" {
		fields = append(fields, zap.String("git.branch", e.Branch))
	}

	if e.PullRequestNr != 0 {
		fields = append(fields, zap.Int("github.pull_request_nr", e.PullRequestNr))
	}

	return fields
}
