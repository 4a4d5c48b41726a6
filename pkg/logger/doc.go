// Package logger builds the service's *slog.Logger and defines the attribute
// helpers used across billing code.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "billingd"),
//		logger.WithConfig(logCfg),
//		logger.WithContextExtractors(environment.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "checkout reconciled",
//		logger.UserID(userID),
//		logger.PlanID(plan.ID),
//		logger.Outcome("succeeded"),
//	)
//
// Security-relevant records carry logger.Security() so they can be routed to
// a separate sink.
package logger
