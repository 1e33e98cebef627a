// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package server implements §6's Push/Pull RPC as JSON-over-HTTP: a
// gorilla/mux router exposes the four named endpoints behind bearer-JWT
// auth, and a Prometheus collector polls the Object Database's metrics
// for a /metrics scrape. Grounded on the teacher's pkg/serve/httpserver
// (Server struct, ListenAndServe/Shutdown, mux.Router wiring).
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
)

const defaultMetricsInterval = 15 * time.Second

// Config controls a Server's network timeouts and bearer-auth secret.
type Config struct {
	Addr            string
	JWTSecret       []byte
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MetricsInterval time.Duration
	Log             *logrus.Logger
}

// Server is the HTTP front for a single repository's Push/Pull RPC.
type Server struct {
	cfg       Config
	repo      *repository.Repository
	srv       *http.Server
	router    *mux.Router
	collector *Collector
	log       *logrus.Logger
}

// NewServer builds a Server over repo. Call ListenAndServe to start it.
func NewServer(repo *repository.Repository, cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	s := &Server{cfg: cfg, repo: repo, log: cfg.Log}

	r := mux.NewRouter()
	r.HandleFunc("/info/refs", instrument("info_refs", requireBearer(cfg.JWTSecret, Download, s.infoRefs))).Methods(http.MethodGet)
	r.HandleFunc("/refs/update", instrument("refs_update", requireBearer(cfg.JWTSecret, Upload, s.refsUpdate))).Methods(http.MethodPost)
	r.HandleFunc("/objects/want", instrument("objects_want", requireBearer(cfg.JWTSecret, Download, s.objectsWant))).Methods(http.MethodPost)
	r.HandleFunc("/objects/pack", instrument("objects_pack", requireBearer(cfg.JWTSecret, Upload, s.objectsPack))).Methods(http.MethodPost)
	r.Handle("/metrics", Handler()).Methods(http.MethodGet)
	s.router = r

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.collector = NewCollector(repo.Objects)
	return s
}

// ListenAndServe starts the metrics collector and blocks serving HTTP.
func (s *Server) ListenAndServe() error {
	interval := s.cfg.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	s.collector.Start(interval)
	s.log.Infof("mediagit server listening on %s", s.cfg.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops the metrics collector and gracefully drains in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.collector.Stop()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Errorf("shutdown mediagit server: %v", err)
		return err
	}
	return nil
}
