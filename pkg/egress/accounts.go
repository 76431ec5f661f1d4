package egress

import (
	"context"
	"errors"

	"github.com/stagegate/stagegate/pkg/types"
)

// StaticAccounts resolves workspace member accounts from configuration. A
// per-workspace entry wins over the default.
type StaticAccounts struct {
	// DefaultAccountID is used when no per-workspace mapping exists.
	DefaultAccountID string `mapstructure:"default_account_id"`

	// ByWorkspace maps workspace IDs to their member account IDs.
	ByWorkspace map[string]string `mapstructure:"by_workspace"`
}

func (a StaticAccounts) MemberAccountID(ctx context.Context, rc *types.RequestContext, workspaceID string) (string, error) {
	if id, ok := a.ByWorkspace[workspaceID]; ok {
		return id, nil
	}
	if a.DefaultAccountID != "" {
		return a.DefaultAccountID, nil
	}
	return "", errors.New("no member account configured for workspace " + workspaceID)
}
