// Package billing reconciles Stripe subscription state into local storage.
//
// The engine pulls the provider event feed instead of receiving webhooks. Each
// poll cycle walks every page of customer and subscription events and hands
// them to a Dispatcher, which links provider customers to local users by email
// (Resolver) and upserts subscription status rows (Upserter). A failing event
// is logged and skipped; the rest of the cycle continues.
//
// # Wiring
//
//	store := billing.NewCachedStore(pgStore, cfg.CustomerCacheSize, cfg.CustomerCacheTTL)
//	poller := billing.PollPeriodically(ctx, cfg, store,
//		billing.WithProvider(stripeProvider),
//		billing.WithLocker(billing.NewRedisLocker(redisClient)),
//		billing.WithPollerLogger(log))
//	if poller == nil {
//		// STRIPE_API_KEY is empty; polling is disabled.
//	}
//
// The pieces can also be assembled by hand, for example to run a single cycle:
//
//	provider, _ := billing.NewStripeProvider(cfg)
//	resolver := billing.NewResolver(store, provider)
//	dispatcher := billing.NewDispatcher(resolver, billing.NewUpserter(store))
//	stats, err := billing.NewFetcher(provider, dispatcher).FetchAndProcess(ctx)
//
// # Statuses
//
// Status is a closed set mirroring Stripe's eight subscription statuses.
// MapStatus is the only translation point; a status outside the set fails the
// event with ErrUnknownSubscriptionStatus.
//
// # Concurrency
//
// A Poller runs one cycle at a time. Across processes, WithLocker adds a Redis
// lock so only one instance polls per interval. Subscription upserts are single
// atomic statements; billing customer creation is a conditional insert, so
// racing resolvers converge on the same row.
package billing
