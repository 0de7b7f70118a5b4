// Package middleware provides HTTP middleware for the serve command.
//
// Usage:
//
//	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 5, Burst: 10})
//	defer rl.Close()
//	r.Use(rl.Middleware)
package middleware
