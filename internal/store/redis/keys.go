package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark record keys
	KeyPrefixBookmark = "marks:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner index keys
	KeyPrefixOwner = "marks:owner:"
	// KeyPrefixFeed is the prefix for per-owner change feed channels
	KeyPrefixFeed = "marks:feed:"
	// KeySeq is the global insertion counter used as index score
	KeySeq = "marks:seq"
)

// BookmarkKey returns the Redis key for a bookmark
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerIndexKey returns the sorted set holding an owner's bookmark IDs, scored by insertion order
func OwnerIndexKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":bookmarks"
}

// FeedChannel returns the Pub/Sub channel carrying an owner's change events
func FeedChannel(ownerID string) string {
	return KeyPrefixFeed + ownerID
}
