// Package handlers implements the podkeeper CLI commands.
//
// Handlers load configuration, build the RunPod client and orchestrators,
// and print results. Collaborators are created through package-level
// factory variables so tests can replace them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/podkeeper/internal/config"
	"github.com/imamik/podkeeper/internal/orchestration"
	"github.com/imamik/podkeeper/internal/platform/runpod"
	"github.com/imamik/podkeeper/internal/state"
)

// Options are the flags shared by every command.
type Options struct {
	// ConfigPath selects a YAML config file. Empty means RUNPOD_* variables.
	ConfigPath string
	// Pods limits a multi-pod config file to these logical names.
	Pods  []string
	Debug bool
}

// Factory function variables - can be replaced in tests.
var (
	loadEnvConfig       = config.LoadFromEnv
	loadEnvAccessConfig = config.LoadAccessFromEnv
	loadFileConfig      = config.LoadFile

	newProvider = func(cfg *config.Config, logger logr.Logger, m *runpod.Metrics) orchestration.Provider {
		return runpod.NewClient(cfg.APIKey,
			runpod.WithTimeout(cfg.HTTPTimeout),
			runpod.WithEndpoints(cfg.RESTURL, cfg.GraphQLURL),
			runpod.WithRetry(cfg.Retry.MaxRetries, cfg.Retry.InitialDelay),
			runpod.WithUserAgent(cfg.UserAgent),
			runpod.WithStatusVia(cfg.StatusVia),
			runpod.WithResumeGPUCount(cfg.Pod.GPUCount),
			runpod.WithLogger(logger),
			runpod.WithMetrics(m),
		)
	}

	newOrchestratorOptions = func() []orchestration.Option { return nil }

	newLogger = newZapLogger

	stdout io.Writer = os.Stdout

	isInteractive = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
)

// session is everything a command needs for the selected pods.
type session struct {
	ctx     context.Context
	logger  logr.Logger
	configs []*config.Config
	orchs   []*orchestration.Orchestrator
	// providers holds one provider per config, in config order.
	providers []orchestration.Provider
	stores    map[string]*state.Store
}

// open loads the configuration and builds one orchestrator per selected
// pod. Orchestrators sharing a state file share one store. Metrics are
// registered on reg when it is not nil.
func open(ctx context.Context, opts Options, reg prometheus.Registerer) (*session, error) {
	logger, err := newLogger(opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	ctx = logr.NewContext(ctx, logger)

	configs, err := loadConfigs(opts)
	if err != nil {
		return nil, err
	}

	var (
		apiMetrics  *runpod.Metrics
		orchMetrics *orchestration.Metrics
	)
	if reg != nil {
		apiMetrics = runpod.NewMetrics(reg)
		orchMetrics = orchestration.NewMetrics(reg)
	}

	s := &session{ctx: ctx, logger: logger, configs: configs, stores: make(map[string]*state.Store)}
	for _, cfg := range configs {
		store, ok := s.stores[cfg.StatePath]
		if !ok {
			store = state.NewStore(cfg.StatePath)
			s.stores[cfg.StatePath] = store
		}
		provider := newProvider(cfg, logger, apiMetrics)
		orchOpts := append([]orchestration.Option{
			orchestration.WithStore(store),
			orchestration.WithMetrics(orchMetrics),
		}, newOrchestratorOptions()...)

		s.providers = append(s.providers, provider)
		s.orchs = append(s.orchs, orchestration.New(provider, *cfg, orchOpts...))
	}
	return s, nil
}

// openAccess loads only API access settings, for commands that do not
// manage a particular pod.
func openAccess(ctx context.Context, opts Options) (context.Context, *config.Config, orchestration.Provider, error) {
	logger, err := newLogger(opts.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	ctx = logr.NewContext(ctx, logger)

	var cfg *config.Config
	if opts.ConfigPath != "" {
		configs, err := loadConfigs(opts)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = configs[0]
	} else {
		cfg, err = loadEnvAccessConfig()
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return ctx, cfg, newProvider(cfg, logger, nil), nil
}

func loadConfigs(opts Options) ([]*config.Config, error) {
	if opts.ConfigPath == "" {
		cfg, err := loadEnvConfig()
		if err != nil {
			return nil, err
		}
		if len(opts.Pods) > 0 && !slices.Contains(opts.Pods, cfg.Pod.Name) {
			return nil, &config.ConfigError{Key: "--pod", Reason: fmt.Sprintf("pod %q is not configured (RUNPOD_POD_NAME is %q)", opts.Pods[0], cfg.Pod.Name)}
		}
		return []*config.Config{cfg}, nil
	}

	configs, err := loadFileConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if len(opts.Pods) == 0 {
		return configs, nil
	}

	selected := make([]*config.Config, 0, len(opts.Pods))
	for _, name := range opts.Pods {
		idx := slices.IndexFunc(configs, func(c *config.Config) bool { return c.Pod.Name == name })
		if idx < 0 {
			return nil, &config.ConfigError{Key: "--pod", Reason: fmt.Sprintf("pod %q is not configured in %s", name, opts.ConfigPath)}
		}
		selected = append(selected, configs[idx])
	}
	return selected, nil
}
