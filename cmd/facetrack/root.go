package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/capture"
	"github.com/ayusman/facetrack/internal/classifier"
	"github.com/ayusman/facetrack/internal/publish"
	"github.com/ayusman/facetrack/internal/server"
	"github.com/ayusman/facetrack/internal/store"
	"github.com/ayusman/facetrack/internal/tray"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

// Options holds the command-line configuration.
type Options struct {
	Device      int
	Addr        string
	DBPath      string
	CascadesDir string
	Model       string
	FPS         int
	NoTray      bool
}

var opts Options

var rootCmd = &cobra.Command{
	Use:     "facetrack",
	Short:   "Live face and eye detection from a camera",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts, cmd.Flags().Changed("fps"))
	},
	SilenceUsage: true,
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().IntVarP(&opts.Device, "device", "d", 0, "Camera device index")
	rootCmd.Flags().StringVarP(&opts.Addr, "addr", "a", ":8080", "HTTP listen address")
	rootCmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default: ~/.facetrack/facetrack.db)")
	rootCmd.Flags().StringVarP(&opts.CascadesDir, "cascades", "c", "", "Directory holding haarcascades/ and lbpcascades/ (default: $FACETRACK_CASCADES)")
	rootCmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Face model to load at startup: haar or lbp (default: last used)")
	rootCmd.Flags().IntVar(&opts.FPS, "fps", capture.DefaultFPS, "Frames per second requested from the camera")
	rootCmd.Flags().BoolVar(&opts.NoTray, "no-tray", false, "Run without the system tray, controlled over HTTP only")
}

func run(ctx context.Context, opts Options, fpsSet bool) error {
	fmt.Println("Facetrack - Face and Eye Detection")

	cascades := opts.CascadesDir
	if cascades == "" {
		cascades = os.Getenv("FACETRACK_CASCADES")
	}
	if cascades == "" {
		return errors.New("no cascade directory: pass --cascades or set FACETRACK_CASCADES")
	}

	dbPath, err := resolveDBPath(opts.DBPath)
	if err != nil {
		return err
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	camera := capture.NewCamera(opts.Device)
	camera.SetFPS(opts.FPS)

	registry := classifier.NewRegistry(classifier.DefaultModels(cascades), classifier.EyeModelPath(cascades), nil)
	frames := publish.NewMailbox()

	config := app.DefaultConfig()
	config.DeviceID = opts.Device
	config.Store = st
	if fpsSet && opts.FPS > 0 {
		config.Period = time.Second / time.Duration(opts.FPS)
	}

	sched := app.New(config, camera, registry, frames)
	defer sched.Close()

	if opts.Model != "" {
		err = sched.SelectModel(classifier.ModelID(strings.ToLower(opts.Model)))
	} else {
		err = sched.RestoreModel()
	}
	if err != nil {
		log.Printf("No classifier loaded: %v", err)
	}

	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Scheduler: sched,
		Frames:    frames,
		Store:     st,
	})
	defer srv.Close()

	httpServer := &http.Server{Addr: opts.Addr, Handler: srv}
	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if opts.NoTray {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
	} else {
		t := tray.New(sched)
		t.OnViewer(func() { openBrowser(viewerURL(opts.Addr)) })
		go func() {
			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					log.Printf("Server failed: %v", err)
				}
			}
			t.Quit()
		}()
		t.Run()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	return nil
}

// resolveDBPath returns path, or ~/.facetrack/facetrack.db when empty,
// creating the parent directory.
func resolveDBPath(path string) (string, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".facetrack", "facetrack.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return path, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.facetrack/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".facetrack", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

// viewerURL turns a listen address into a browsable URL.
func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
