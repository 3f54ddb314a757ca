package core

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var ErrUnknownService = errors.New("unknown rpc service")
var ErrMethodNotAllowed = errors.New("method not allowed")

const DefaultListen = ":3005"

// Cycles attached to a call are a 128 bit unsigned amount.
const maxCallCyclesBits = 128

// Config is the gateway config file. JSON files are accepted as well, being
// valid YAML.
type Config struct {
	Listen    string                   `yaml:"listen"`
	Services  map[string]ServiceConfig `yaml:"services"`
	Providers map[string]string        `yaml:"providers"`
}

type ServiceConfig struct {
	Service RpcService `yaml:"service"`
	// decimal or 0x prefixed hex
	CallCycles      string   `yaml:"callCycles"`
	MaxResponseSize *uint64  `yaml:"maxResponseSize"`
	AllowedMethods  []string `yaml:"allowedMethods"`
}

func NewConfig() *Config {
	return &Config{
		Listen:    DefaultListen,
		Services:  make(map[string]ServiceConfig),
		Providers: make(map[string]string),
	}
}

func ParseConfig(bts []byte) (*Config, error) {
	config := NewConfig()

	if err := yaml.Unmarshal(bts, config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if len(config.Services) == 0 {
		return nil, errors.New("need services")
	}

	for name, svc := range config.Services {
		if err := svc.Service.Validate(); err != nil {
			return nil, errors.Wrapf(err, "service %s", name)
		}
	}

	return config, nil
}

func LoadConfig(path string) (*Config, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	return ParseConfig(bts)
}

// TransportConfig builds the transport configuration of the service. Fields
// left out of the file stay unset so the transport defaults apply.
func (c ServiceConfig) TransportConfig() (TransportConfig, error) {
	cfg := NewTransportConfig(c.Service)

	if c.CallCycles != "" {
		v, ok := math.ParseBig256(c.CallCycles)
		if !ok || v.Sign() < 0 || v.BitLen() > maxCallCyclesBits {
			return cfg, errors.Errorf("invalid callCycles %q", c.CallCycles)
		}

		cycles, _ := uint256.FromBig(v)
		cfg = cfg.WithCallCycles(cycles)
	}

	if c.MaxResponseSize != nil {
		cfg = cfg.WithMaxResponseSize(*c.MaxResponseSize)
	}

	return cfg, nil
}

type RunningService struct {
	Name      string
	Transport *Transport
	// Service is Transport wrapped in the logging and metrics layers.
	Service        Service
	allowedMethods map[string]bool
}

func (s *RunningService) isAllowedMethod(method string) bool {
	if len(s.allowedMethods) == 0 {
		return true
	}

	return s.allowedMethods[method]
}

func (s *RunningService) isAllowedPacket(packet RequestPacket) error {
	for _, method := range packet.Methods() {
		if !s.isAllowedMethod(method) {
			return errors.Wrap(ErrMethodNotAllowed, method)
		}
	}

	return nil
}

// RunningConfig is the immutable set of transports built from a Config. A
// reload replaces it as a whole.
type RunningConfig struct {
	Listen   string
	Services map[string]*RunningService
}

func (c *RunningConfig) Service(name string) (*RunningService, error) {
	svc, ok := c.Services[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownService, name)
	}

	return svc, nil
}

func (c *RunningConfig) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// BuildRunningConfig creates one transport per configured service. A nil
// caller means an HttpCaller over the configured providers.
func BuildRunningConfig(cfg *Config, caller Caller) (*RunningConfig, error) {
	if caller == nil {
		caller = NewHttpCaller(cfg.Providers)
	}

	listen := cfg.Listen
	if listen == "" {
		listen = DefaultListen
	}

	rcfg := &RunningConfig{
		Listen:   listen,
		Services: make(map[string]*RunningService),
	}

	for name, svcCfg := range cfg.Services {
		transportCfg, err := svcCfg.TransportConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "service %s", name)
		}

		transport := NewTransport(transportCfg, caller)

		svc := &RunningService{
			Name:           name,
			Transport:      transport,
			Service:        Stack(transport, LoggingLayer(logrus.WithField("service", name)), MetricsLayer()),
			allowedMethods: make(map[string]bool),
		}

		for _, method := range svcCfg.AllowedMethods {
			svc.allowedMethods[method] = true
		}

		rcfg.Services[name] = svc
	}

	return rcfg, nil
}

// WatchConfig loads the config file, hands the result to apply, and keeps
// polling the file until ctx is done. A file that fails to load on reload is
// skipped and the previous config stays in use.
func WatchConfig(ctx context.Context, path string, interval time.Duration, caller Caller, apply func(*RunningConfig)) error {
	var currentConfigString string

	reloadConfig := func() error {
		bts, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}

		if string(bts) == currentConfigString {
			return nil
		}

		config, err := ParseConfig(bts)
		if err != nil {
			return err
		}

		running, err := BuildRunningConfig(config, caller)
		if err != nil {
			return err
		}

		logrus.Infof("reloading running config: %v", running.ServiceNames())
		apply(running)
		currentConfigString = string(bts)

		return nil
	}

	// loading on init.
	if err := reloadConfig(); err != nil {
		return err
	}

	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := reloadConfig(); err != nil {
					logrus.Warnf("hot reload config err, use old config: %v", err)
				}
			case <-ctx.Done():
				logrus.Info("quit loop config")
				return
			}
		}
	}()

	return nil
}
