package execution

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type configMockClient struct {
	Mock     MockConfig
	Ready    bool
	Fixtures bool
}

// mockConfigFile is the yaml shape of a mock venue profile, referenced from
// the dsn by config=path.
type mockConfigFile struct {
	Fill           string            `yaml:"fill"`
	PartialSteps   int               `yaml:"partialSteps"`
	Latency        time.Duration     `yaml:"latency"`
	RejectEvery    int               `yaml:"rejectEvery"`
	ReferencePrice string            `yaml:"referencePrice"`
	Balances       map[string]string `yaml:"balances"`
}

func loadMockConfigFile(path string) (MockConfig, error) {
	var cfg MockConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithMessage(err, "fail read mock config file")
	}
	var file mockConfigFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, errors.WithMessage(err, "fail parse mock config file")
	}

	if file.Fill != "" {
		cfg.Fill, err = FillPolicyStrToType(file.Fill)
		if err != nil {
			return cfg, err
		}
	}
	cfg.PartialSteps = file.PartialSteps
	cfg.Latency = file.Latency
	cfg.RejectEvery = file.RejectEvery
	if file.ReferencePrice != "" {
		cfg.ReferencePrice, err = decimal.NewFromString(file.ReferencePrice)
		if err != nil {
			return cfg, errors.WithMessage(err, "invalid reference price value")
		}
	}
	if len(file.Balances) > 0 {
		cfg.Balances = make(map[string]decimal.Decimal, len(file.Balances))
		for asset, total := range file.Balances {
			cfg.Balances[asset], err = decimal.NewFromString(total)
			if err != nil {
				return cfg, errors.WithMessagef(err, "invalid balance value for %s", asset)
			}
		}
	}
	return cfg, nil
}

func parseDsnMock(dsn string) (*configMockClient, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	cfg := &configMockClient{}

	if u.Query().Get("config") != "" {
		cfg.Mock, err = loadMockConfigFile(u.Query().Get("config"))
		if err != nil {
			return nil, err
		}
	}

	if u.Query().Get("fill") != "" {
		cfg.Mock.Fill, err = FillPolicyStrToType(u.Query().Get("fill"))
		if err != nil {
			return nil, err
		}
	}
	if u.Query().Get("latency") != "" {
		cfg.Mock.Latency, err = time.ParseDuration(u.Query().Get("latency"))
		if err != nil {
			return nil, errors.WithMessage(err, "invalid latency value")
		}
	}
	if u.Query().Get("reject_every") != "" {
		cfg.Mock.RejectEvery, err = strconv.Atoi(u.Query().Get("reject_every"))
		if err != nil {
			return nil, errors.WithMessage(err, "invalid reject_every value")
		}
	}
	if u.Query().Get("ready") == "true" {
		cfg.Ready = true
	}
	if u.Query().Get("fixtures") == "true" {
		cfg.Fixtures = true
	}

	return cfg, nil
}

// NewClient creates a client from a dsn string. Supported schemes are
// mock:// (simulated venue, tunable through query params and an optional
// yaml profile) and ws:// or wss:// (read-only account feed).
func NewClient(logger *zap.Logger, dsn string) (Client, error) {

	if strings.HasPrefix(dsn, "mock://") {
		cfg, err := parseDsnMock(dsn)
		if err != nil {
			return nil, errors.WithMessage(err, "fail parse mock dsn")
		}
		client := NewMockClient(logger, cfg.Mock)
		client.SetReady(cfg.Ready)
		if cfg.Fixtures {
			client.SetupFixtures()
		}
		return client, nil
	}

	if strings.HasPrefix(dsn, "ws://") || strings.HasPrefix(dsn, "wss://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return nil, errors.WithMessage(err, "fail parse ws dsn")
		}
		if u.Hostname() == "" {
			return nil, errors.New("host is empty")
		}
		return NewWSClient(logger, dsn), nil
	}

	return nil, errors.New("config not supported")
}
