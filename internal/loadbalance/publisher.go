package loadbalance

import (
	"context"

	"github.com/kestrel-sched/domlb/internal/logging"
)

// DirectiveGateway is the subset of the kernel-map gateway the publisher
// needs: clearing the directive table before a tick's writes, and writing
// one pid -> destination-domain directive with create-only semantics so a
// pid already redirected this tick by an earlier migration is left alone.
type DirectiveGateway interface {
	ClearDirectives(ctx context.Context) error
	PublishDirective(ctx context.Context, pid int32, domID uint32) error
}

// Publish clears the directive table and writes every planned migration
// to it, counting (but not aborting on) individual write failures. The
// returned count is added by the caller to its running total of data
// errors for reporting.
func Publish(ctx context.Context, gw DirectiveGateway, migrations []Migration) (errCount int) {
	if err := gw.ClearDirectives(ctx); err != nil {
		logging.Component("loadbalance").Warn().Err(err).Msg("failed to clear directive table")
	}

	for _, m := range migrations {
		if err := gw.PublishDirective(ctx, m.PID, m.ToDom); err != nil {
			logging.Component("loadbalance").Warn().
				Int32("pid", m.PID).Uint32("to_dom", m.ToDom).Err(err).
				Msg("failed to publish migration directive")
			errCount++
		}
	}
	return errCount
}
