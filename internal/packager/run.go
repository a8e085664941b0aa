package packager

import (
	"context"
	"log/slog"

	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/resolve"
)

// Resolver expands a specifier into installed packages.
type Resolver interface {
	Expand(ctx context.Context, raw string) (resolve.Resolution, error)
}

// Run packages every specifier in order. Specifiers that resolve to nothing
// or fail to resolve are recorded as missing, as are set members that match
// nothing. Run stops early only when ctx is cancelled.
func Run(ctx context.Context, resolver Resolver, p *Packager, specifiers []string, logger *slog.Logger) (*Summary, error) {
	logger = logging.NewComponentLogger(logger, "run")
	summary := &Summary{}
	for _, raw := range specifiers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := resolver.Expand(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			attrs := []logging.Attr{
				logging.String(logging.FieldSpecifier, raw),
				logging.Error(err),
				logging.String(logging.FieldImpact, "specifier skipped"),
			}
			if pkgerr.Classify(err) != pkgerr.TierInput {
				attrs = append(attrs, logging.String(logging.FieldErrorHint, "check the package database path"))
			}
			logging.WarnWithContext(logger, "could not resolve specifier", "specifier_unresolved", attrs...)
			summary.Missing = append(summary.Missing, raw)
			continue
		}
		for _, member := range res.Unmatched {
			logger.Warn("no installed package matches set member",
				logging.String(logging.FieldSpecifier, member),
				logging.String("set", raw),
			)
			summary.Missing = append(summary.Missing, member)
		}
		if len(res.CPVs) == 0 {
			if len(res.Unmatched) == 0 {
				logger.Warn("no installed package matches", logging.String(logging.FieldSpecifier, raw))
				summary.Missing = append(summary.Missing, raw)
			}
			continue
		}
		for _, cpv := range res.CPVs {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.record(p.Package(ctx, cpv))
		}
	}
	return summary, nil
}
