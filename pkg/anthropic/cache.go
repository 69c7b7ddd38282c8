package anthropic

// CachedSystem returns a single system block marked as a prompt cache
// breakpoint. The chat service sends the same dataset context on every turn
// of a session, so later turns read it from the cache.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
