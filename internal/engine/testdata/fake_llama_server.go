package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var model, mmproj, host, port string
	var ctxSize int
	// Accept the subset of llama-server flags used by the backend.
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&mmproj, "mmproj", "", "projector path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.IntVar(&ctxSize, "c", 4096, "context size")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/props", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"default_generation_settings": map[string]any{"n_ctx": ctxSize},
			"model_path":                  model,
			"build_info":                  "b0-fake",
		})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt struct {
				MultimodalData []string `json:"multimodal_data"`
			} `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		content := "no image"
		if len(req.Prompt.MultimodalData) > 0 && mmproj != "" {
			content = "A red dress."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": content, "tokens_predicted": 3})
	})

	srv := &http.Server{Addr: net.JoinHostPort(host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for SIGTERM then shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
