// Package tokenstest builds token counters that need no network.
package tokenstest

import (
	"github.com/weaviate/tiktoken-go"

	"portfolio-assistant/internal/tokens"
)

const endOfText = "<|endoftext|>"

// ByteEncoder is a tiny byte-level BPE: one token per byte, with "po", "rt"
// and "port" merged. Multibyte characters span several tokens, as they do in
// the real encodings.
func ByteEncoder() (*tokens.Tiktoken, error) {
	ranks := make(map[string]int, 259)
	for b := 0; b < 256; b++ {
		ranks[string([]byte{byte(b)})] = b
	}
	ranks["po"] = 256
	ranks["rt"] = 257
	ranks["port"] = 258
	special := map[string]int{endOfText: 1000}

	bpe, err := tiktoken.NewCoreBPE(ranks, special, `\S+|\s+`)
	if err != nil {
		return nil, err
	}
	enc := tiktoken.NewTiktoken(bpe, &tiktoken.Encoding{
		Name:           "test_bytes",
		PatStr:         `\S+|\s+`,
		MergeableRanks: ranks,
		SpecialTokens:  special,
	}, map[string]any{endOfText: true})
	return tokens.FromEncoder(enc), nil
}
