package util

import (
	"crypto/rand"
	"math/big"
)

// PickProxy returns one of the configured proxies at random, or "" when
// none are configured.
func PickProxy(proxies []string) string {
	if len(proxies) == 0 {
		return ""
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(proxies))))
	if err != nil {
		return proxies[0]
	}
	return proxies[nBig.Int64()]
}

func ProxyArgs(proxies []string) []string {
	url := PickProxy(proxies)
	if url == "" {
		return nil
	}
	return []string{"--proxy", url}
}
