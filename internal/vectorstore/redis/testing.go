package redis

import "github.com/redis/rueidis"

// NewStoreForTest wires a Store around an injected (usually mocked) client.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, prefix: "kbrag:"}
}
