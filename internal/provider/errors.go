package provider

import "errors"

var (
	// ErrUnavailable means a live fetch failed and no valid snapshot exists.
	// Callers cannot compute a score from this input at all.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrNoData means the provider answered but the response was empty or
	// unusable. Resolvers treat it the same as ErrUnavailable.
	ErrNoData = errors.New("provider returned no usable data")

	// ErrRateLimited marks a rate-limit or abuse-prevention response.
	// Samplers stop early on it rather than hammering the provider.
	ErrRateLimited = errors.New("provider rate limited")
)
