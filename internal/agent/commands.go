package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SwapSentinel/internal/notifier"
)

const commandTimeout = 2 * time.Minute

// HandleCommand processes a chat command and returns the reply.
func (a *Agent) HandleCommand(ctx context.Context, command string) string {
	cmd := strings.ToLower(strings.Fields(command + " ")[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/status":
		return notifier.FormatStatus(a.Status())
	case "/start":
		return notifier.FormatStatus(a.Start())
	case "/stop":
		return notifier.FormatStatus(a.Stop())
	case "/withdraw":
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		res, err := a.Submit(ctx, JobWithdraw)
		switch {
		case err != nil:
			return fmt.Sprintf("❌ withdraw not completed: %v", err)
		case errors.Is(res.Err, ErrNothingToWithdraw):
			return "Nothing pending to withdraw."
		case res.Dispatch != nil:
			return notifier.FormatDispatch(*res.Dispatch)
		default:
			return fmt.Sprintf("❌ withdraw failed: %v", res.Err)
		}
	default:
		return "Commands:\n• /status\n• /start\n• /stop\n• /withdraw"
	}
}
