package logger

import "strings"

// Lines list their fields by rank: the envelope first, then who the line is
// about, then the order being worked on, then transport details. Keys
// without a rank come next in alphabetical order and error keys close the line.
var rankedKeys = [][]string{
	{"ts", "level", "component", "event", "status"},
	{"rid", "update_id", "chat_id", "user_id", "handler", "state"},
	{"order_id", "order_status", "city", "district", "product", "price", "method", "count"},
	{
		"action", "endpoint", "attempt", "attempts", "outcome", "duration_ms", "messages", "kb", "payload",
		"mode", "listen", "public_url", "addr", "driver", "db", "host", "port", "path",
	},
}

var tailKeys = []string{"err", "err_code", "cause", "retryable"}

const unrankedKey = 1 << 16

var keyRanks = buildRanks()

func buildRanks() map[string]int {
	ranks := make(map[string]int, 64)
	for g, keys := range rankedKeys {
		for i, k := range keys {
			ranks[k] = g<<8 | i
		}
	}
	for i, k := range tailKeys {
		ranks[k] = unrankedKey + 1 + i
	}
	return ranks
}

func keyRank(key string) int {
	if r, ok := keyRanks[key]; ok {
		return r
	}
	return unrankedKey
}

// msKey names a duration field in milliseconds.
func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
