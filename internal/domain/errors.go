package domain

import "errors"

var (
	// ErrInvalidCriteria is returned when search criteria fail validation
	ErrInvalidCriteria = errors.New("invalid search criteria")

	// ErrProviderFailure is returned when the search provider request fails
	ErrProviderFailure = errors.New("search provider request failed")

	// ErrProviderPayload is returned when the provider body cannot be decoded
	ErrProviderPayload = errors.New("search provider returned an invalid payload")

	// ErrProviderError is returned when the provider answers with an error payload
	ErrProviderError = errors.New("search provider returned an error")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStaleResponse is returned when a newer search replaced the one in flight
	ErrStaleResponse = errors.New("search superseded by a newer request")
)
