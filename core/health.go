package core

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ServiceInfo struct {
	RpcService      string `json:"rpcService"` // only first 30 chars
	ChainId         string `json:"chainId,omitempty"`
	CallCycles      string `json:"callCycles"`
	MaxResponseSize string `json:"maxResponseSize"`
	IsLocal         bool   `json:"isLocal"`
}

type HealthInfo map[string]ServiceInfo

func getHealthInfo(running *RunningConfig) HealthInfo {
	info := make(HealthInfo, len(running.Services))

	for name, svc := range running.Services {
		t := svc.Transport

		rpcService := t.RpcService().String()
		if len(rpcService) > 30 {
			rpcService = rpcService[:30]
		}

		serviceInfo := ServiceInfo{
			RpcService:      rpcService,
			CallCycles:      t.resolveCallCycles().Dec(),
			MaxResponseSize: "estimated",
			IsLocal:         t.IsLocal(),
		}

		if chainId, ok := t.RpcService().ChainID(); ok {
			serviceInfo.ChainId = hexutil.EncodeUint64(chainId)
		}

		if size, ok := t.MaxResponseSize(); ok {
			serviceInfo.MaxResponseSize = strconv.FormatUint(size, 10)
		}

		info[name] = serviceInfo
	}

	return info
}
