package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/catalog"
	"github.com/seguelabs/segue/internal/config"
	"github.com/seguelabs/segue/internal/engine"
	"github.com/seguelabs/segue/internal/intent"
	"github.com/seguelabs/segue/internal/monitor"
	"github.com/seguelabs/segue/internal/planner"
	"github.com/seguelabs/segue/internal/resolver"
	"github.com/seguelabs/segue/internal/stream"
	"github.com/seguelabs/segue/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mix engine and HTTP server",
	Long: `Serve loads the catalog, starts the session loop, and exposes:

  /            operator console
  /stream      chunked MP3 stream of the live mix
  /offer       WebRTC SDP exchange for the low-latency Opus feed
  /api/status  session snapshot as JSON
  /api/intent  POST one intent as JSON

Configuration comes from SEGUE_* environment variables (and an optional
.env file); flags override the environment.`,
	RunE: runServe,
}

var (
	servePort    int
	serveCatalog string
	serveMonitor bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides SEGUE_PORT)")
	serveCmd.Flags().StringVar(&serveCatalog, "catalog", "", "catalog file (overrides SEGUE_CATALOG)")
	serveCmd.Flags().BoolVar(&serveMonitor, "monitor", false, "also play the mix on the local audio device")
}

// statusResponse is the /api/status body: the session snapshot plus
// listener counts.
type statusResponse struct {
	engine.Status
	HTTPListeners   int `json:"http_listeners"`
	WebRTCListeners int `json:"webrtc_listeners"`
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveCatalog != "" {
		cfg.CatalogPath = serveCatalog
	}
	if serveMonitor {
		cfg.Monitor = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	log.Printf("Catalog loaded: %d tracks from %s", cat.Len(), cfg.CatalogPath)

	res := resolver.New(cat, cfg.Threshold)
	plan := planner.New(cat, cfg.BPMWindow)

	session := engine.New(cat, res, plan, audio.DecodeFile, engine.Params{
		MixBars:        cfg.MixBars,
		FadeNowBars:    cfg.FadeNowBars,
		PauseBars:      cfg.PauseBars,
		HoldBars:       cfg.HoldBars,
		VocalDelayBars: cfg.VocalDelayBars,
		PhraseBars:     cfg.PhraseBars,
		MaxStretch:     cfg.MaxStretch,
	})
	go session.Run(ctx)

	// Broadcaster: fan the rendered mix out to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, session.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	if cfg.Monitor {
		if err := monitor.New(broadcaster).Start(ctx); err != nil {
			log.Printf("Monitor disabled: %v", err)
		}
	}

	// HTTP routes
	mux := http.NewServeMux()

	// Operator console
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Audio streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster))
	mux.Handle("/offer", webrtcHandler)

	// API endpoints
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(statusResponse{
			Status:          session.Status(),
			HTTPListeners:   broadcaster.ListenerCount(),
			WebRTCListeners: webrtcHandler.PeerCount(),
		})
	})

	mux.HandleFunc("/api/intent", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		in, err := intent.Parse(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := session.Submit(r.Context(), in); err != nil {
			json.NewEncoder(w).Encode(map[string]any{
				"ok":      false,
				"error":   err.Error(),
				"outcome": session.Status().LastOutcome,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"outcome": session.Status().LastOutcome,
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("segue live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
