package cache

import "strings"

const prefix = "donkicalc:"

// KeyRate returns the cache key for the latest base/quote rate.
func KeyRate(base, quote string) string {
	return prefix + "rate:" + strings.ToUpper(base) + ":" + strings.ToUpper(quote)
}

// KeyRefreshLock returns the lock key guarding a base/quote refresh.
func KeyRefreshLock(base, quote string) string {
	return prefix + "lock:refresh:" + strings.ToUpper(base) + ":" + strings.ToUpper(quote)
}

// KeyViews returns the cache key for a page view counter.
func KeyViews(slug string) string {
	return prefix + "views:" + slug
}

// KeyRateLimit returns the prefix used by the request rate limiters.
func KeyRateLimit() string {
	return prefix + "ratelimit:"
}
