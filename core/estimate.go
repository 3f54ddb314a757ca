package core

const (
	MaxResponseSizeSmall   uint64 = 1_000
	MaxResponseSizeMedium  uint64 = 2_000
	MaxResponseSizeUnknown uint64 = 5_000
)

// MaxResponseSizeFor returns the response size tier of a method.
func MaxResponseSizeFor(method string) uint64 {
	switch method {
	case "eth_blockNumber", "eth_getBalance", "eth_chainId", "eth_estimateGas", "eth_gasPrice",
		"eth_getBlockTransactionCountByHash", "eth_getBlockTransactionCountByNumber", "eth_getCode",
		"eth_getProof", "eth_getStorageAt", "eth_getTransactionCount", "eth_getUncleCountByBlockHash",
		"eth_getUncleCountByBlockNumber", "eth_maxPriorityFeePerGas", "eth_protocolVersion":
		return MaxResponseSizeSmall
	case "eth_feeHistory", "eth_getTransactionByBlockHashAndIndex", "eth_getTransactionByHash":
		return MaxResponseSizeMedium
	default:
		return MaxResponseSizeUnknown
	}
}

// EstimateMaxResponseSize sums the tiers of every request in the packet. It
// is only a fallback for transports without an explicit max response size.
func EstimateMaxResponseSize(packet RequestPacket) uint64 {
	var size uint64

	for _, req := range packet.Requests() {
		size += MaxResponseSizeFor(req.Method())
	}

	return size
}
