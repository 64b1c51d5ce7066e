package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/events"
)

var (
	conf           config.Config
	configPath     string
	registry       = channel.NewRegistry()
	sseHub         = events.NewHub()
	reloadRecorder = NewReloadRecorder(20)
	reloadMu       = &sync.Mutex{}
	scheduler      *Scheduler

	// stopStreams is closed when the http server shuts down, ending SSE streams.
	stopStreams chan struct{}
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/version", getVersion)
	router.GET("/config", getConfig)
	router.POST("/reload", reload)
	router.GET("/reloads", getReloads)
	router.GET("/events", streamEvents)

	channels := router.Group("/channels")
	channels.GET("", listChannels)
	channels.GET("/:name", getChannel)
	channels.PUT("/:name", putChannel)
	channels.DELETE("/:name", deleteChannel)
	channels.GET("/:name/points", getPoints)
	channels.POST("/:name/points", addPoint)
	channels.GET("/:name/adjust", adjustOne)
	channels.POST("/:name/adjust", adjustMany)

	return router
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(cfgPath string, unixSocketPath string, allowNonRoot bool) error {
	var err error
	configPath = cfgPath
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	scheduler = NewScheduler(
		func() error { return reloadChannels(TriggerSchedule) },
		precheckConfig,
		func(err error) { logrus.Errorf("scheduled reload: %v", err) },
	)

	if err := reloadChannels(TriggerStartup); err != nil {
		// Broken channels are reported but do not prevent startup.
		logrus.Errorf("failed to load channels: %v", err)
	}

	scheduler.Start()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := reloadChannels(TriggerSignal); err != nil {
				logrus.Errorf("failed to reload: %v", err)
				continue
			}
		}
	}()

	srv := &http.Server{
		Handler:           setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stopStreams = make(chan struct{})
	srv.RegisterOnShutdown(func() { close(stopStreams) })

	// Remove a stale socket left behind by a crashed daemon.
	if _, err := os.Stat(unixSocketPath); err == nil {
		logrus.Warnf("removing stale socket %s", unixSocketPath)
		_ = os.Remove(unixSocketPath)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler")
	scheduler.Stop()

	logrus.Info("exiting")
	return nil
}

// precheckConfig verifies the config file still parses before a scheduled
// reload replaces the live tables.
func precheckConfig() error {
	_, err := config.NewFile(configPath)
	return err
}
