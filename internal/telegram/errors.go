package telegram

import (
	"errors"
	"fmt"

	"github.com/AlexKrutoy/SnapsterBot/internal/bridge"
	"github.com/gotd/td/tgerr"
)

var unauthorizedTypes = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"AUTH_KEY_DUPLICATED",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
}

// classify maps RPC errors onto the bridge taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bridge.ErrUnauthorized) {
		return err
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &bridge.FloodWaitError{Wait: wait}
	}
	if tgerr.Is(err, unauthorizedTypes...) || tgerr.IsCode(err, 401) {
		return fmt.Errorf("%w: %v", bridge.ErrUnauthorized, err)
	}
	return err
}
