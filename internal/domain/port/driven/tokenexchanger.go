package driven

import (
	"context"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// TokenExchanger signs an assertion with the App's signing identity and trades
// it for a fresh installation credential. Every call performs a full exchange;
// there is no refresh-token flow.
type TokenExchanger interface {
	Exchange(ctx context.Context) (model.InstallationCredential, error)
}
