package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/art"
	"github.com/ayusman/mudra/internal/audio"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the draw session and its web UI",
	Long: `Starts the camera pipeline (or mouse input), the session loop and the HTTP
server that serves the browser view, the JSON API and the event socket.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().Bool("mouse", false, "Use mouse input instead of the camera")
	serveCmd.Flags().Bool("tray", false, "Show a system tray menu")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if mouse, _ := cmd.Flags().GetBool("mouse"); mouse {
		cfg.Capture.Enabled = false
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = findWebDir(cfg.DataDir)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "mudra.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	cards, err := deck.MajorArcana()
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := server.NewHub(logger.With("component", "ws"))

	appCfg := app.Config{
		Settings: *cfg,
		Cards:    cards,
		Store:    st,
		Audio:    newAudio(cfg, logger),
		Metrics:  m,
		Scene:    hub,
		Logger:   logger,
	}
	if cfg.Art.APIKey != "" {
		appCfg.Art = art.NewClient(&http.Client{}, cfg.Art, logger.With("component", "art"))
	} else {
		logger.Info("art generation disabled: no API key configured")
	}

	var frames *capture.Latest
	if cfg.Capture.Enabled {
		frames = capture.NewLatest()
		appCfg.Frames = frames
		appCfg.Camera = capture.NewCamera(capture.Options{
			DeviceID: cfg.Capture.CameraID,
			Mirror:   cfg.Capture.Mirror,
		})
		appCfg.Detector = newDetector(logger)
		defer appCfg.Detector.Close()
	}

	a, err := app.New(appCfg)
	if err != nil {
		return err
	}
	a.AddObserver(hub)
	hub.SetInput(a)

	srv := server.New(server.Config{
		StaticDir:  cfg.Server.StaticDir,
		Controller: a,
		Store:      st,
		Hub:        hub,
		Frames:     frames,
		Metrics:    m.Handler(),
		Logger:     logger.With("component", "http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, cfg.Server.Addr) })

	if useTray, _ := cmd.Flags().GetBool("tray"); useTray {
		t := tray.New(a, logger.With("component", "tray"))
		t.OnOpen(func() { openBrowser(browserURL(cfg.Server.Addr), logger) })
		t.OnQuit(stop)
		a.AddObserver(session.ObserverFunc(func(e session.Event) {
			if e.Kind == session.EventTransition || e.Kind == session.EventReset {
				t.SetState(e.To.String())
			}
		}))
		go func() {
			<-gctx.Done()
			t.Quit()
		}()
		// The tray needs the main thread on macOS.
		t.Run()
		stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("mudra stopped")
	return nil
}

func newAudio(cfg *config.Config, logger *slog.Logger) audio.Player {
	mgr := plugin.NewManager(cfg.Audio.PluginDir, logger.With("component", "plugins"))
	if err := mgr.Discover(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Audio.PluginDir, "err", err)
	}
	return audio.NewPluginPlayer(audio.Config{
		Plugins: mgr,
		Runner:  plugin.NewExecutor(cfg.Audio.Timeout),
		Name:    cfg.Audio.Plugin,
		Logger:  logger.With("component", "audio"),
	})
}

// newDetector prefers the MediaPipe service and falls back to the mock
// detector, which never finds a hand, so the UI still runs.
func newDetector(logger *slog.Logger) detector.Detector {
	d, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), logger.With("component", "detector"))
	if err != nil {
		logger.Warn("mediapipe unavailable, hand detection disabled", "err", err)
		return detector.NewMockDetector()
	}
	return d
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *slog.Logger) {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		logger.Warn("open browser", "url", url, "err", err)
	}
}

// findWebDir searches for the web directory in common locations: "web",
// "../web", "../../web" and <dataDir>/web. It returns the first existing
// directory or an empty string.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	if dataDir == "" {
		return ""
	}
	dir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}
