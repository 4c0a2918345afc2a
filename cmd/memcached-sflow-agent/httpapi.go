package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/netweaver/sflowagent/pkg/sflow"
)

// controlPlane exposes the operational HTTP surface alongside the memcache
// protocol listener: health, a stats snapshot, live sampling-rate/polling-
// interval adjustment, and the Prometheus scrape endpoint.
//
// Grounded in the cluster dashboard's MountRoutes pattern: a subrouter built
// once at startup, with each handler registered via HandleFunc(...).Methods(...).
type controlPlane struct {
	store   *store
	sampler *sflow.Sampler
	decider *sflow.SamplingDecider
	poller  *sflow.Poller
	logger  *zap.Logger
}

// MountRoutes registers the control plane's handlers on r.
func (cp *controlPlane) MountRoutes(r *mux.Router) {
	sub := r.PathPrefix("/").Subrouter()
	sub.HandleFunc("/healthz", cp.handleHealthz).Methods(http.MethodGet)
	sub.HandleFunc("/stats", cp.handleStats).Methods(http.MethodGet)
	sub.HandleFunc("/config/sampling-rate", cp.handleSetSamplingRate).Methods(http.MethodPut)
	sub.HandleFunc("/config/polling-interval", cp.handleSetPollingInterval).Methods(http.MethodPut)
	sub.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (cp *controlPlane) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statsResponse struct {
	CurrItems       uint64 `json:"curr_items"`
	CmdGet          uint64 `json:"cmd_get"`
	CmdSet          uint64 `json:"cmd_set"`
	CmdDelete       uint64 `json:"cmd_delete"`
	GetHits         uint64 `json:"get_hits"`
	GetMisses       uint64 `json:"get_misses"`
	SamplingRate    uint32 `json:"sampling_rate"`
	PollingInterval uint32 `json:"polling_interval_secs"`
	FlowSeqNo       uint32 `json:"flow_seq_no"`
	CountersSeqNo   uint32 `json:"counters_seq_no"`
}

func (cp *controlPlane) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		CurrItems:       cp.store.currItems(),
		CmdGet:          cp.store.cmdGet.Load(),
		CmdSet:          cp.store.cmdSet.Load(),
		CmdDelete:       cp.store.cmdDelete.Load(),
		GetHits:         cp.store.getHits.Load(),
		GetMisses:       cp.store.getMisses.Load(),
		SamplingRate:    cp.sampler.Rate(),
		PollingInterval: cp.poller.Interval(),
		FlowSeqNo:       cp.sampler.FlowSeqNo(),
		CountersSeqNo:   cp.poller.CountersSeqNo(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type rateRequest struct {
	Rate uint32 `json:"rate"`
}

func (cp *controlPlane) handleSetSamplingRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if v := r.URL.Query().Get("rate"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				http.Error(w, "invalid rate", http.StatusBadRequest)
				return
			}
			req.Rate = uint32(n)
		} else {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	cp.sampler.SetRate(req.Rate)
	cp.decider.SetRate(req.Rate)
	cp.logger.Info("sampling rate updated", zap.Uint32("rate", req.Rate))
	w.WriteHeader(http.StatusNoContent)
}

type intervalRequest struct {
	Seconds uint32 `json:"seconds"`
}

func (cp *controlPlane) handleSetPollingInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if v := r.URL.Query().Get("seconds"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				http.Error(w, "invalid seconds", http.StatusBadRequest)
				return
			}
			req.Seconds = uint32(n)
		} else {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	cp.poller.SetInterval(req.Seconds)
	cp.logger.Info("polling interval updated", zap.Uint32("seconds", req.Seconds))
	w.WriteHeader(http.StatusNoContent)
}
