package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/handcontrol/internal/app"
	"github.com/ayusman/handcontrol/internal/capture"
	"github.com/ayusman/handcontrol/internal/config"
	"github.com/ayusman/handcontrol/internal/detector"
	"github.com/ayusman/handcontrol/internal/gesture"
	"github.com/ayusman/handcontrol/internal/logging"
	"github.com/ayusman/handcontrol/internal/plugin"
	"github.com/ayusman/handcontrol/internal/server"
	"github.com/ayusman/handcontrol/internal/store"
	"github.com/ayusman/handcontrol/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configDir := flag.String("config", defaultConfigDir(), "directory holding handcontrol.json")
	withTray := flag.Bool("tray", false, "show the system tray menu")
	flag.Parse()

	if err := run(*configDir, *withTray); err != nil {
		log.Fatal().Err(err).Msg("handcontrol failed")
	}
}

func run(configDir string, withTray bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir(), "handcontrol.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logging.Setup(cfg.LogLevel, os.Stderr, logFile)

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	plugins := plugin.NewManager(cfg.Plugins.Dir)
	if err := plugins.Discover(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Plugins.Dir).Msg("plugin discovery failed")
	}
	runner := plugin.NewRunner(plugins, plugin.NewExecutor(cfg.Plugins.Timeout))

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	width, height := cfg.Resolution()

	var det detector.Detector
	bridge, err := detector.NewBridgeDetector(detector.Config{
		MaxHands:        2,
		MinConfidence:   cfg.Sensor.JointConfidence,
		MinTrackingConf: cfg.Sensor.JointConfidence,
	}, cfg.DataDir())
	if errors.Is(err, detector.ErrBridgeNotFound) {
		log.Warn().Msg("sensor bridge not found, running without hand detection")
		det = detector.NewMockDetector()
	} else if err != nil {
		return err
	} else {
		det = bridge
	}

	var motion *capture.MotionDetector
	if cfg.Sensor.MotionThreshold > 0 {
		motion = capture.NewMotionDetector(cfg.Sensor.MotionThreshold, capture.DefaultQuietPeriod)
	}

	controller, err := app.New(app.Config{
		Engine:            engineCfg,
		Clock:             gesture.SystemClock{},
		Camera:            capture.NewCamera(cfg.Sensor.CameraID, int(width), int(height)),
		Detector:          det,
		Motion:            motion,
		Store:             st,
		Run:               runner,
		QueueSize:         cfg.Plugins.QueueSize,
		MinConfidence:     cfg.Sensor.JointConfidence,
		Width:             width,
		Height:            height,
		TickInterval:      cfg.Sensor.TickInterval,
		IdleInterval:      cfg.Sensor.IdleInterval,
		DefaultHold:       cfg.Control.InvokeTime,
		DefaultPressDepth: cfg.Control.PressDepth,
	})
	if err != nil {
		return err
	}

	hub := server.NewHub()
	hub.Hello = func() server.Message {
		return server.Message{Type: "status", Time: time.Now(), Data: controller.Status()}
	}
	controller.Subscribe(func(n app.Notice) {
		hub.Broadcast("notice", n)
	})

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir())
	}
	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:      staticDir,
		Store:          st,
		Controller:     controller,
		Plugins:        plugins,
		Hub:            hub,
		DefaultHold:    cfg.Control.InvokeTime,
		OnLayoutChange: controller.ReloadLayout,
	})

	if err := controller.Start(); err != nil {
		return fmt.Errorf("start control loop: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	if withTray {
		t := newTray(controller, settingsURL(cfg.Server.Addr), stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on macOS.
		t.Run()
		stop()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(err, srv.Shutdown(shutdownCtx), controller.Stop(shutdownCtx))
}

// newTray wires the tray menu to the controller.
func newTray(controller *app.App, url string, quit func()) *tray.Tray {
	t := tray.New(controller.IsEnabled())
	t.OnToggle(controller.SetEnabled)
	t.OnSettings(func() { openBrowser(url) })
	t.OnQuit(quit)

	controller.Subscribe(func(n app.Notice) {
		switch n.Kind {
		case gesture.EventStateChanged:
			t.SetState(n.To.String())
		case gesture.EventTargetConfirmed:
			t.SetLast(n.TargetName)
		}
		t.SetEnabled(controller.IsEnabled())
	})
	return t
}

func settingsURL(addr string) string {
	host, port, ok := strings.Cut(addr, ":")
	if !ok {
		return "http://" + addr
	}
	if host == "" {
		host = "localhost"
	}
	return "http://" + host + ":" + port
}

func openBrowser(url string) {
	name := "xdg-open"
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "explorer"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".handcontrol")
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
