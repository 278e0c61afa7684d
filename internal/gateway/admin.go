package gateway

import (
	"context"

	"github.com/dwizi/rescue-console/internal/dispatch"
)

func (s *service) reloadConfig(ctx context.Context, inv *dispatch.Invocation) error {
	if s.reload == nil {
		return inv.Reply(ctx, "Reload is not available without a console file.")
	}
	if err := s.reload(ctx); err != nil {
		s.logger.Error("console reload failed", "error", err, "requested_by", inv.User().Nickname)
		return inv.Reply(ctx, "Reload failed, previous configuration kept: "+err.Error())
	}
	s.logger.Info("console reloaded", "requested_by", inv.User().Nickname)
	return inv.Reply(ctx, "Configuration reloaded.")
}

func (s *service) showVersion(ctx context.Context, inv *dispatch.Invocation) error {
	return inv.Reply(ctx, "rescue-console "+s.version)
}
