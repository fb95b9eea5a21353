package server

import (
	"context"
	"fmt"
	"os"
	"time"

	flowctlpb "github.com/withobsrvr/flowctl/proto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Elactrac/dotnation-sub005/monitor"
)

const (
	defaultFlowctlEndpoint   = "localhost:8080"
	defaultHeartbeatInterval = 10 * time.Second
)

// FlowctlController registers the monitor with the flowctl control
// plane and pushes metric heartbeats. When the control plane is
// unreachable it falls back to a simulated registration so the monitor
// keeps running.
type FlowctlController struct {
	conn              *grpc.ClientConn
	client            flowctlpb.ControlPlaneClient
	serviceID         string
	endpoint          string
	healthEndpoint    string
	heartbeatInterval time.Duration
	stopHeartbeat     chan struct{}
	monitor           *monitor.Monitor
	logger            *zap.Logger
}

// NewFlowctlController creates a controller for the monitor whose
// health endpoint listens on apiPort. Endpoint and heartbeat interval
// come from FLOWCTL_ENDPOINT and FLOWCTL_HEARTBEAT_INTERVAL.
func NewFlowctlController(m *monitor.Monitor, apiPort int, logger *zap.Logger) *FlowctlController {
	endpoint := os.Getenv("FLOWCTL_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultFlowctlEndpoint
	}

	interval := defaultHeartbeatInterval
	if v := os.Getenv("FLOWCTL_HEARTBEAT_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			interval = parsed
		} else {
			logger.Warn("invalid FLOWCTL_HEARTBEAT_INTERVAL, using default",
				zap.String("value", v),
				zap.Duration("default", defaultHeartbeatInterval))
		}
	}

	return &FlowctlController{
		endpoint:          endpoint,
		healthEndpoint:    fmt.Sprintf("http://localhost:%d/health", apiPort),
		heartbeatInterval: interval,
		stopHeartbeat:     make(chan struct{}),
		monitor:           m,
		logger:            logger,
	}
}

// Register connects to the control plane and announces the monitor.
// A registration failure downgrades to simulated mode rather than
// returning an error, so the caller's pipeline never depends on
// flowctl availability.
func (fc *FlowctlController) Register() error {
	fc.logger.Info("connecting to flowctl control plane",
		zap.String("endpoint", fc.endpoint))

	conn, err := grpc.Dial(fc.endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connecting to flowctl control plane: %w", err)
	}
	fc.conn = conn
	fc.client = flowctlpb.NewControlPlaneClient(conn)

	serviceInfo := &flowctlpb.ServiceInfo{
		ServiceType:      flowctlpb.ServiceType_SERVICE_TYPE_PROCESSOR,
		InputEventTypes:  []string{"substrate.block_events"},
		OutputEventTypes: []string{"dotnation.contract_event"},
		HealthEndpoint:   fc.healthEndpoint,
		MaxInflight:      100,
		Metadata: map[string]string{
			"processor_type": "contract_event_monitor",
			"namespace":      monitor.DefaultNamespace,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ack, err := fc.client.Register(ctx, serviceInfo)
	if err != nil {
		fc.serviceID = fmt.Sprintf("sim-event-monitor-%s", time.Now().Format("20060102150405"))
		fc.logger.Warn("failed to register with flowctl, using simulated mode",
			zap.Error(err),
			zap.String("service_id", fc.serviceID))
	} else {
		fc.serviceID = ack.ServiceId
		fc.logger.Info("registered with flowctl control plane",
			zap.String("service_id", fc.serviceID),
			zap.Strings("topics", ack.TopicNames))
	}

	go fc.heartbeatLoop()
	return nil
}

func (fc *FlowctlController) heartbeatLoop() {
	ticker := time.NewTicker(fc.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fc.sendHeartbeat()
		case <-fc.stopHeartbeat:
			fc.logger.Info("flowctl heartbeat loop stopped")
			return
		}
	}
}

func (fc *FlowctlController) sendHeartbeat() {
	snap := fc.monitor.Metrics()

	heartbeat := &flowctlpb.ServiceHeartbeat{
		ServiceId: fc.serviceID,
		Timestamp: timestamppb.Now(),
		Metrics: map[string]float64{
			"blocks_processed": float64(snap.BlocksProcessed),
			"events_ingested":  float64(snap.EventsIngested),
			"events_filtered":  float64(snap.EventsFiltered),
			"listener_faults":  float64(snap.ListenerFaults),
			"decode_faults":    float64(snap.DecodeFaults),
			"last_block":       float64(snap.LastBlock),
			"history_size":     float64(snap.HistorySize),
			"uptime_seconds":   snap.UptimeSeconds,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := fc.client.Heartbeat(ctx, heartbeat); err != nil {
		fc.logger.Warn("failed to send flowctl heartbeat", zap.Error(err))
		return
	}
	fc.logger.Debug("sent flowctl heartbeat", zap.String("service_id", fc.serviceID))
}

// Stop halts the heartbeat loop and closes the control plane
// connection.
func (fc *FlowctlController) Stop() {
	close(fc.stopHeartbeat)
	if fc.conn != nil {
		fc.conn.Close()
	}
	fc.logger.Info("flowctl controller stopped")
}
