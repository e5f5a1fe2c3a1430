package chat

// ConversationKey derives the deterministic bucket key for a two-party
// conversation: the participant identifiers sorted lexicographically and
// joined. Both participants must compute the same key regardless of which
// side is "self" and regardless of identifier scheme (internal user ids and
// 0x-prefixed chain addresses are both in circulation), otherwise the two
// sides file the same conversation under different buckets.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
