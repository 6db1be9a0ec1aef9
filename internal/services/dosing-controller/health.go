package dosing_controller

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = "pond.doser"

// connChecker is satisfied by mqtt.Client.
type connChecker interface {
	IsConnectionOpen() bool
}

// loopProbe is satisfied by *Monitor.
type loopProbe interface {
	Healthy() bool
	LastTickAge() (time.Duration, bool)
}

// Probe combines the broker connection and the monitor loop liveness.
type Probe struct {
	MQTT connChecker
	Loop loopProbe
}

func (p Probe) mqttUp() bool { return p.MQTT != nil && p.MQTT.IsConnectionOpen() }
func (p Probe) loopUp() bool { return p.Loop != nil && p.Loop.Healthy() }

// Ready is true when commands can be published and the loop is ticking.
func (p Probe) Ready() bool { return p.mqttUp() && p.loopUp() }

type healthHandler struct{ probe Probe }

func (h healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status        string  `json:"status"`
		MQTTConnected bool    `json:"mqtt_connected"`
		LoopHealthy   bool    `json:"loop_healthy"`
		LastTickAgeS  float64 `json:"last_tick_age_sec"`
	}
	st := status{MQTTConnected: h.probe.mqttUp(), LoopHealthy: h.probe.loopUp(), LastTickAgeS: -1}
	if h.probe.Loop != nil {
		if age, ok := h.probe.Loop.LastTickAge(); ok {
			st.LastTickAgeS = age.Seconds()
		}
	}
	switch {
	case st.MQTTConnected && st.LoopHealthy:
		st.Status = "ok"
	case st.MQTTConnected || st.LoopHealthy:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct{ probe Probe }

func (h readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.probe.Ready()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

// NewHTTPMux serves /healthz, /readyz and /metrics from the given gatherer.
func NewHTTPMux(probe Probe, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthHandler{probe: probe})
	mux.Handle("/readyz", readyHandler{probe: probe})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// GRPCHealth mirrors Probe.Ready on the standard gRPC health service.
type GRPCHealth struct {
	server *grpc.Server
	health *health.Server
	probe  Probe
	log    *zap.SugaredLogger
}

func NewGRPCHealth(probe Probe, log *zap.SugaredLogger) *GRPCHealth {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPCHealth{server: srv, health: hs, probe: probe, log: log}
}

// Sync updates the serving status from the probe.
func (g *GRPCHealth) Sync() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if g.probe.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(ServiceName, status)
	g.health.SetServingStatus("", status)
}

// Serve listens on lis and refreshes the status every interval until ctx is done.
func (g *GRPCHealth) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			g.Sync()
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-t.C:
			}
		}
	}()
	g.log.Infof("health: gRPC listening on %s", lis.Addr())
	return g.server.Serve(lis)
}

func (g *GRPCHealth) Server() *health.Server { return g.health }
