package driven

import (
	"context"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// IssueTracker defines the driven port for the remote issue tracker. The
// owner and repository are bound when the adapter is constructed; every call
// authenticates with the credential it is given.
type IssueTracker interface {
	// CreateIssue opens a new issue and returns it with its number and URL.
	CreateIssue(ctx context.Context, cred model.InstallationCredential, title, body string) (model.Issue, error)

	// GetIssue fetches an existing issue by number.
	GetIssue(ctx context.Context, cred model.InstallationCredential, number int) (model.Issue, error)

	// UpdateIssue replaces the title and body of an existing issue.
	UpdateIssue(ctx context.Context, cred model.InstallationCredential, number int, title, body string) error

	// CreateComment appends a comment to an existing issue.
	CreateComment(ctx context.Context, cred model.InstallationCredential, number int, body string) error
}
