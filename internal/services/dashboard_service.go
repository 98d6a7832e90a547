package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sarthwa8/digital-twin-dashboard/internal/models"
	"github.com/sarthwa8/digital-twin-dashboard/internal/registry"
	"github.com/sarthwa8/digital-twin-dashboard/internal/state_managers"
)

var (
	ErrServiceRunning    = errors.New("dashboard service is already running")
	ErrServiceNotRunning = errors.New("dashboard service is not running")
)

const (
	defaultStreamBuffer = 8
	shutdownTimeout     = 5 * time.Second
	writeTimeout        = 5 * time.Second
)

// DashboardConfig configures the HTTP surface.
type DashboardConfig struct {
	Addr         string
	StreamBuffer int
}

// DashboardService serves the current snapshot over HTTP and streams every
// published snapshot to websocket consumers.
type DashboardService struct {
	Config    DashboardConfig
	Snapshots state_managers.SnapshotReader
	Channels  registry.ChannelResolver
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger

	router   *gin.Engine
	upgrader websocket.Upgrader
	clients  cmap.ConcurrentMap[string, *streamClient]

	mu          sync.Mutex
	server      *http.Server
	listener    net.Listener
	unsubscribe func()
	wg          sync.WaitGroup
}

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan models.Snapshot
	done chan struct{}
	once sync.Once
}

func (sc *streamClient) close() {
	sc.once.Do(func() {
		close(sc.done)
		sc.conn.Close()
	})
}

var _ registry.Service = (*DashboardService)(nil)

// NewDashboardService creates the service and its routes. gatherer may be nil,
// in which case /metrics serves the default Prometheus registry.
func NewDashboardService(config DashboardConfig, snapshots state_managers.SnapshotReader,
	channels registry.ChannelResolver, gatherer prometheus.Gatherer, logger zerolog.Logger) *DashboardService {

	if config.StreamBuffer <= 0 {
		config.StreamBuffer = defaultStreamBuffer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	d := &DashboardService{
		Config:    config,
		Snapshots: snapshots,
		Channels:  channels,
		Gatherer:  gatherer,
		Logger:    logger,
		router:    gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: cmap.New[*streamClient](),
	}
	d.setupRoutes()
	return d
}

func (d *DashboardService) setupRoutes() {
	d.router.Use(gin.Recovery(), d.requestLogger())

	d.router.GET("/health", d.handleHealth)
	d.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	api := d.router.Group("/api/v1")
	{
		api.GET("/snapshot", d.handleSnapshot)
		api.GET("/channels", d.handleChannels)
		api.GET("/stream", d.handleStream)
	}
}

// Handler exposes the routes, mainly for tests.
func (d *DashboardService) Handler() http.Handler {
	return d.router
}

// Addr is the bound listen address while running.
func (d *DashboardService) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// StreamClients returns the number of connected stream consumers.
func (d *DashboardService) StreamClients() int {
	return d.clients.Count()
}

// Start binds the listen address and serves in the background.
func (d *DashboardService) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		d.Logger.Warn().Msg("DashboardService is already running")
		return ErrServiceRunning
	}

	ln, err := net.Listen("tcp", d.Config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.Config.Addr, err)
	}

	d.listener = ln
	d.server = &http.Server{Handler: d.router, ReadHeaderTimeout: 10 * time.Second}
	d.unsubscribe = d.Snapshots.Subscribe(d.broadcast)

	server := d.server
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error().Err(err).Msg("Dashboard server stopped unexpectedly")
		}
	}()

	d.Logger.Info().Str("addr", ln.Addr().String()).Msg("DashboardService started successfully")
	return nil
}

// Stop shuts the server down and disconnects every stream consumer.
func (d *DashboardService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server == nil {
		d.Logger.Warn().Msg("DashboardService is not running")
		return ErrServiceNotRunning
	}

	d.unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := d.server.Shutdown(ctx)

	// Hijacked websocket connections are not tracked by Shutdown.
	for item := range d.clients.IterBuffered() {
		item.Val.close()
	}
	d.wg.Wait()

	d.server, d.listener, d.unsubscribe = nil, nil, nil
	if err != nil {
		return fmt.Errorf("failed to shut down dashboard server: %w", err)
	}
	d.Logger.Info().Msg("DashboardService stopped successfully")
	return nil
}

func (d *DashboardService) handleHealth(c *gin.Context) {
	snap := d.Snapshots.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"connection": snap.Connection,
		"sequence":   snap.Sequence,
	})
}

func (d *DashboardService) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, d.Snapshots.Current())
}

func (d *DashboardService) handleChannels(c *gin.Context) {
	channels := d.Channels.All()
	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

func (d *DashboardService) handleStream(c *gin.Context) {
	conn, err := d.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		d.Logger.Warn().Err(err).Msg("Failed to upgrade stream connection")
		return
	}

	client := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan models.Snapshot, d.Config.StreamBuffer),
		done: make(chan struct{}),
	}
	client.send <- d.Snapshots.Current()
	d.clients.Set(client.id, client)
	d.Logger.Info().Str("client_id", client.id).Str("remote", c.Request.RemoteAddr).Msg("Stream client connected")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.writeLoop(client)
	}()

	// Consumers never send data; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clients.Remove(client.id)
	client.close()
	d.Logger.Info().Str("client_id", client.id).Msg("Stream client disconnected")
}

func (d *DashboardService) writeLoop(client *streamClient) {
	for {
		select {
		case <-client.done:
			return
		case snap := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.conn.WriteJSON(snap); err != nil {
				d.Logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to write snapshot to stream client")
				client.close()
				return
			}
		}
	}
}

// broadcast runs on the publishing goroutine and never blocks: a consumer that
// falls behind loses its oldest queued snapshot.
func (d *DashboardService) broadcast(snap models.Snapshot) {
	for item := range d.clients.IterBuffered() {
		client := item.Val
		select {
		case client.send <- snap:
			continue
		default:
		}

		select {
		case <-client.send:
		default:
		}
		select {
		case client.send <- snap:
		default:
		}
		d.Logger.Debug().Str("client_id", client.id).Uint64("sequence", snap.Sequence).Msg("Stream client lagging, dropped oldest snapshot")
	}
}

func (d *DashboardService) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d.Logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
