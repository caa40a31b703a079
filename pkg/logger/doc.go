// Package logger builds *slog.Logger instances for billsync processes.
//
// New applies functional options on top of JSON output at INFO level.
// Context extractors add attributes taken from context.Context (request and
// poll cycle IDs) to every record logged with a *Context method.
//
// Attribute helpers keep key names consistent across packages: reconciliation
// code logs provider identifiers with ProviderEventID, ProviderCustomerID and
// ProviderSubscriptionID, and failures with Error.
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Parse(cfg.Env), cfg.Name),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
package logger
