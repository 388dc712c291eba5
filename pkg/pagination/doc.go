// Package pagination walks paginated object listings and collects the
// metafields of every object they contain.
//
// Listings are cursor paginated: every page carries the URL of its
// successor in the Link response header. The collector fetches pages and
// metafield pages strictly one after another; the store enforces a
// per-store call limit, so concurrent fetching only adds retry pressure.
//
// Example usage:
//
//	session, _ := client.BuildSession(store, apiKey, password)
//	exec := client.NewExecutor(logger, nil)
//	collector := pagination.NewCollector(session, exec, logger)
//	records, err := collector.Collect(ctx, product)
//
// Every remote call goes through its own client.Execute retry loop, so a
// rate limit or server error on one object does not discard the records
// already collected for earlier objects.
package pagination
