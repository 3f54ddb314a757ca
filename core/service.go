package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/params"
)

type ServiceKind string

const (
	ServiceEthMainnet      ServiceKind = "EthMainnet"
	ServiceEthSepolia      ServiceKind = "EthSepolia"
	ServiceArbitrumOne     ServiceKind = "ArbitrumOne"
	ServiceBaseMainnet     ServiceKind = "BaseMainnet"
	ServiceOptimismMainnet ServiceKind = "OptimismMainnet"
	ServiceChain           ServiceKind = "Chain"
	ServiceProvider        ServiceKind = "Provider"
	ServiceCustom          ServiceKind = "Custom"
)

var l2ChainIds = map[ServiceKind]uint64{
	ServiceArbitrumOne:     42161,
	ServiceBaseMainnet:     8453,
	ServiceOptimismMainnet: 10,
}

type HttpHeader struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

type RpcApi struct {
	URL     string       `yaml:"url" json:"url"`
	Headers []HttpHeader `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// RpcService identifies the chain and provider an external call targets.
// Named networks carry a provider name, Chain and Provider carry numeric
// ids, and Custom carries an explicit endpoint.
type RpcService struct {
	Kind       ServiceKind `yaml:"kind" json:"kind"`
	Provider   string      `yaml:"provider,omitempty" json:"provider,omitempty"`
	ChainId    uint64      `yaml:"chainId,omitempty" json:"chainId,omitempty"`
	ProviderId uint64      `yaml:"providerId,omitempty" json:"providerId,omitempty"`
	Custom     *RpcApi     `yaml:"custom,omitempty" json:"custom,omitempty"`
}

func EthMainnet(provider string) RpcService {
	return RpcService{Kind: ServiceEthMainnet, Provider: provider}
}

func EthSepolia(provider string) RpcService {
	return RpcService{Kind: ServiceEthSepolia, Provider: provider}
}

func ArbitrumOne(provider string) RpcService {
	return RpcService{Kind: ServiceArbitrumOne, Provider: provider}
}

func BaseMainnet(provider string) RpcService {
	return RpcService{Kind: ServiceBaseMainnet, Provider: provider}
}

func OptimismMainnet(provider string) RpcService {
	return RpcService{Kind: ServiceOptimismMainnet, Provider: provider}
}

func Chain(chainId uint64) RpcService {
	return RpcService{Kind: ServiceChain, ChainId: chainId}
}

func Provider(providerId uint64) RpcService {
	return RpcService{Kind: ServiceProvider, ProviderId: providerId}
}

func Custom(api RpcApi) RpcService {
	return RpcService{Kind: ServiceCustom, Custom: &api}
}

// ChainID reports the chain the service targets. Provider and Custom
// services do not name a chain.
func (s RpcService) ChainID() (uint64, bool) {
	switch s.Kind {
	case ServiceEthMainnet:
		return params.MainnetChainConfig.ChainID.Uint64(), true
	case ServiceEthSepolia:
		return params.SepoliaChainConfig.ChainID.Uint64(), true
	case ServiceArbitrumOne, ServiceBaseMainnet, ServiceOptimismMainnet:
		return l2ChainIds[s.Kind], true
	case ServiceChain:
		return s.ChainId, true
	}

	return 0, false
}

func (s RpcService) Validate() error {
	switch s.Kind {
	case ServiceEthMainnet, ServiceEthSepolia, ServiceArbitrumOne, ServiceBaseMainnet, ServiceOptimismMainnet,
		ServiceChain, ServiceProvider:
		return nil
	case ServiceCustom:
		if s.Custom == nil || s.Custom.URL == "" {
			return fmt.Errorf("custom rpc service needs a url")
		}
		return nil
	}

	return fmt.Errorf("unsupported rpc service kind: %q", s.Kind)
}

// String is the key used to look the service up in provider tables.
func (s RpcService) String() string {
	switch s.Kind {
	case ServiceChain:
		return fmt.Sprintf("Chain/%d", s.ChainId)
	case ServiceProvider:
		return fmt.Sprintf("Provider/%d", s.ProviderId)
	case ServiceCustom:
		if s.Custom == nil {
			return "Custom"
		}
		return "Custom/" + s.Custom.URL
	}

	if s.Provider == "" {
		return string(s.Kind)
	}

	return string(s.Kind) + "/" + s.Provider
}
