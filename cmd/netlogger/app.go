package main

import (
	"context"
	"fmt"
	"path"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/internal/agent"
	"github.com/HerbHall/netlogger/internal/config"
	"github.com/HerbHall/netlogger/internal/journal"
	"github.com/HerbHall/netlogger/internal/metrics"
	"github.com/HerbHall/netlogger/internal/netinfo"
	"github.com/HerbHall/netlogger/internal/publish"
	"github.com/HerbHall/netlogger/internal/server"
	"github.com/HerbHall/netlogger/internal/state"
)

// app holds the wired components for the run and once commands.
type app struct {
	agent    *agent.Agent
	store    state.Store
	recorder journal.Recorder
	server   *server.Server
	registry *prometheus.Registry
}

func newApp(ctx context.Context, s config.Settings, logger *zap.Logger) (*app, error) {
	meta := netinfo.NewMetadataLoader(s.Metadata.Path)
	md, err := meta.Load()
	if err != nil {
		logger.Warn("metadata file unusable, using defaults",
			zap.String("path", s.Metadata.Path), zap.Error(err))
	}

	if s.Publish.Backend == publish.BackendMQTT {
		s.Publish.MQTT.TopicPrefix = path.Join(s.Publish.MQTT.TopicPrefix, md.Hostname)
		if s.Publish.MQTT.ClientID == "" {
			s.Publish.MQTT.ClientID = "netlogger-" + md.Hostname
		}
	}

	st, err := state.Open(ctx, s.State)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	rec, err := journal.New(s.Journal)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create journal: %w", err)
	}
	pub, err := publish.New(ctx, s.Publish, logger.Named("publish"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		store:    st,
		recorder: rec,
		registry: reg,
		agent: agent.NewAgent(s.Agent, agent.Deps{
			Source:    netinfo.NewOSSource(s.Source, logger.Named("netinfo")),
			Metadata:  meta,
			Store:     st,
			Recorder:  rec,
			Publisher: pub,
			Publish:   s.Publish,
			Metrics:   metrics.New(reg),
		}, logger.Named("agent")),
	}
	if s.Server.Addr != "" {
		a.server = server.New(s.Server.Addr, a.agent, reg, logger.Named("server"))
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
