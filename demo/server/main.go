package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	shp2geojson "github.com/tingold/orb-shp2geojson"
	"github.com/tingold/orb-shp2geojson/internal/config"
)

// maxUpload caps the size of archives posted to /convert.
const maxUpload = 64 << 20

func main() {
	archive := flag.String("archive", "", "zipped shapefile served at /data.geojson")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var data []byte
	if *archive != "" {
		data, err = loadArchive(ctx, *archive, cfg.Convert)
		if err != nil {
			zap.L().Fatal("convert archive", zap.String("archive", *archive), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newMux(data, cfg.Convert, cfg.Server.ClientDir),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		_ = srv.Shutdown(context.Background())
	}()

	zap.L().Info("starting server",
		zap.Int("port", cfg.Server.Port),
		zap.String("client_dir", cfg.Server.ClientDir),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Fatal("server listen", zap.Error(err))
	}
}

func loadArchive(ctx context.Context, path string, cc config.ConvertConfig) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := shp2geojson.ConvertArchive(ctx, raw, cc.Encoding, cc.Projection, cc.Options())
	if err != nil {
		return nil, err
	}
	zap.L().Info("converted archive", zap.String("archive", path), zap.Int("features", len(fc.Features)))

	var buf bytes.Buffer
	if err := shp2geojson.Write(&buf, fc, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newMux(data []byte, cc config.ConvertConfig, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /data.geojson", func(w http.ResponseWriter, r *http.Request) {
		if data == nil {
			http.Error(w, `{"error":"no archive loaded"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("POST /convert", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
		if err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		encoding := cc.Encoding
		if v := r.URL.Query().Get("encoding"); v != "" {
			encoding = v
		}
		projection := cc.Projection
		if v := r.URL.Query().Get("projection"); v != "" {
			projection = v
		}

		fc, err := shp2geojson.ConvertArchive(r.Context(), raw, encoding, projection, cc.Options())
		if err != nil {
			zap.L().Error("convert upload failed", zap.Error(err))
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := shp2geojson.Write(w, fc, nil); err != nil {
			zap.L().Error("write collection failed", zap.Error(err))
		}
	})

	mux.Handle("/", http.FileServer(http.Dir(clientDir)))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
