package network

import (
	"encoding/json"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

// MostCommon returns the value reported most often. Ties go to the value seen first.
func MostCommon[T comparable](values []T) (T, bool) {
	var best T
	if len(values) == 0 {
		return best, false
	}

	counts := make(map[T]int, len(values))
	bestCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, true
}

func mostCommonNonEmpty(values []string) (string, bool) {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			present = append(present, v)
		}
	}
	return MostCommon(present)
}

func mostCommonList(values [][]string) []string {
	keys := make([]string, 0, len(values))
	lists := make(map[string][]string, len(values))
	for _, v := range values {
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		keys = append(keys, string(encoded))
		lists[string(encoded)] = v
	}
	key, ok := MostCommon(keys)
	if !ok {
		return nil
	}
	return lists[key]
}

// ResolveCoreConfig votes the network-wide values over the keys of the connected
// nodes, visited in connected order.
func ResolveCoreConfig(serverKeys map[string]interfaces.NodeKeys, connected []string, requestID string) (interfaces.CoreNodeConfig, error) {
	var (
		blockhashes, subnetKeys, networkKeys, keySets []string
		hdRoots                                       [][]string
	)
	for _, url := range connected {
		keys, ok := serverKeys[url]
		if !ok {
			continue
		}
		blockhashes = append(blockhashes, keys.LatestBlockhash)
		subnetKeys = append(subnetKeys, keys.SubnetPublicKey)
		networkKeys = append(networkKeys, keys.NetworkPublicKey)
		keySets = append(keySets, keys.NetworkPublicKeySet)
		hdRoots = append(hdRoots, keys.HDRootPubkeys)
	}

	blockhash, ok := mostCommonNonEmpty(blockhashes)
	if !ok {
		return interfaces.CoreNodeConfig{}, interfaces.HandshakeError("latestBlockhash unavailable for request %s", requestID)
	}

	core := interfaces.CoreNodeConfig{
		LatestBlockhash: blockhash,
		HDRootPubkeys:   mostCommonList(hdRoots),
	}
	core.SubnetPubKey, _ = MostCommon(subnetKeys)
	core.NetworkPubKey, _ = MostCommon(networkKeys)
	core.NetworkPubKeySet, _ = MostCommon(keySets)
	return core, nil
}

// ResolveEpoch is the plurality of reported epochs, or 0.
func ResolveEpoch(serverKeys map[string]interfaces.NodeKeys, connected []string) uint64 {
	epochs := make([]uint64, 0, len(connected))
	for _, url := range connected {
		if keys, ok := serverKeys[url]; ok {
			epochs = append(epochs, keys.Epoch)
		}
	}
	epoch, _ := MostCommon(epochs)
	return epoch
}
