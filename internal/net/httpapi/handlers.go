// Package httpapi serves the HTTP control surface: join, liveness, match
// control, diagnostics, and the wire-protocol schema.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"time"

	"github.com/Jamesmykil253/MoBa-sub001/internal/arena"
	"github.com/Jamesmykil253/MoBa-sub001/internal/config"
	"github.com/Jamesmykil253/MoBa-sub001/internal/hub"
	"github.com/Jamesmykil253/MoBa-sub001/internal/net/proto"
	"github.com/Jamesmykil253/MoBa-sub001/internal/telemetry"
)

// HandlerConfig carries the mux's collaborators. Base is the configuration
// the process booted with; its tick rate is the fixed point reloads are
// checked against. WS, when set, mounts at /ws. Reload, when set, re-reads
// configuration for restarts that ask for it.
type HandlerConfig struct {
	Base   config.Config
	Logger telemetry.Logger
	WS     nethttp.Handler
	Reload func() (config.Config, error)
}

// New builds the HTTP mux for one arena server.
func New(h *hub.Hub, cfg HandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			TickRate   int    `json:"tickRate"`
			hub.Diagnostics
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			TickRate:    cfg.Base.Simulation.TickRate,
			Diagnostics: h.DiagnosticsSnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		data, err := json.MarshalIndent(proto.Schema(), "", "  ")
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join, err := h.Join()
		if err != nil {
			if errors.Is(err, arena.ErrMatchFull) {
				httpError(w, "match full", nethttp.StatusConflict)
				return
			}
			logger.Printf("join failed: %v", err)
			httpError(w, "join unavailable", nethttp.StatusServiceUnavailable)
			return
		}

		data, err := proto.EncodeJoinResponse(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/match/restart", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		type restartRequest struct {
			Seed   *int64 `json:"seed"`
			Reload bool   `json:"reload"`
		}
		var req restartRequest
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}

		var staged *config.Config
		active := cfg.Base
		if req.Reload {
			if cfg.Reload == nil {
				httpError(w, "config reload unavailable", nethttp.StatusServiceUnavailable)
				return
			}
			loaded, err := cfg.Reload()
			if err != nil {
				logger.Printf("config reload failed: %v", err)
				httpError(w, "config reload failed", nethttp.StatusBadRequest)
				return
			}
			if loaded.Simulation.TickRate != cfg.Base.Simulation.TickRate {
				httpError(w, "tick_rate changes require a process restart", nethttp.StatusConflict)
				return
			}
			staged = &loaded
			active = loaded
		}

		seed := active.Simulation.Seed
		if req.Seed != nil {
			seed = *req.Seed
		}

		if err := h.MatchRestart(staged, seed); err != nil {
			logger.Printf("match restart failed: %v", err)
			httpError(w, "restart unavailable", nethttp.StatusServiceUnavailable)
			return
		}

		response := struct {
			Status   string `json:"status"`
			Seed     int64  `json:"seed"`
			Reloaded bool   `json:"reloaded"`
		}{Status: "ok", Seed: seed, Reloaded: req.Reload}

		data, err := json.Marshal(response)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if cfg.WS != nil {
		mux.Handle("/ws", cfg.WS)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
