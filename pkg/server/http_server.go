/*
 * Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/NVIDIA/topoengine/internal/httperr"
	"github.com/NVIDIA/topoengine/pkg/config"
	"github.com/NVIDIA/topoengine/pkg/engine"
	"github.com/NVIDIA/topoengine/pkg/metrics"
	"github.com/NVIDIA/topoengine/pkg/topology"
)

const (
	KeyUID     = "uid"
	KeySrc     = "src"
	KeyDst     = "dst"
	KeySrcPort = "src_port"
	KeyDstPort = "dst_port"
	KeyCookie  = "cookie"
	KeySwitch  = "switch"
	KeyPort    = "port"
	KeyFormat  = "format"
)

type HttpServer struct {
	ctx    context.Context
	cfg    *config.Config
	srv    *http.Server
	engine *engine.Engine
	async  *asyncController
}

var srv *HttpServer

func InitHttpServer(ctx context.Context, cfg *config.Config, eng *engine.Engine) {
	srv = initHttpServer(ctx, cfg, eng)
}

func initHttpServer(ctx context.Context, cfg *config.Config, eng *engine.Engine) *HttpServer {
	s := &HttpServer{
		ctx:    ctx,
		cfg:    cfg,
		engine: eng,
	}
	s.async = &asyncController{
		queue: NewTrailingDelayQueue(s.processRequest, cfg.ComputeDelay),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/snapshot", instrument("snapshot", s.snapshot))
	mux.HandleFunc("/v1/route", instrument("route", s.route))
	mux.HandleFunc("/v1/routes", instrument("routes", s.routes))
	mux.HandleFunc("/v1/port", instrument("port", s.port))
	mux.HandleFunc("/v1/topology", instrument("topology", s.topology))
	mux.HandleFunc("/healthz", healthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: mux,
	}

	return s
}

func GetRunGroup() (func() error, func(error)) {
	return srv.Start, srv.Stop
}

func (s *HttpServer) Start() error {
	if s.cfg.HTTP.SSL {
		klog.Infof("Starting HTTPS server on port %d", s.cfg.HTTP.Port)
		return s.srv.ListenAndServeTLS(s.cfg.SSL.Cert, s.cfg.SSL.Key)
	}
	klog.Infof("Starting HTTP server on port %d", s.cfg.HTTP.Port)
	return s.srv.ListenAndServe()
}

func (s *HttpServer) Stop(err error) {
	klog.Infof("Stopping HTTP server: %v", err)
	if err := s.srv.Shutdown(s.ctx); err != nil {
		klog.Errorf("Error during HTTP server shutdown: %v", err)
	}
	s.async.queue.Shutdown()
	klog.Infof("Stopped HTTP server")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.Add(endpoint, rec.status, time.Since(start))
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (s *HttpServer) snapshot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitSnapshot(w, r)
	case http.MethodGet:
		s.getSnapshotResult(w, r)
	default:
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
	}
}

func (s *HttpServer) submitSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Unable to read request body", http.StatusInternalServerError)
		return
	}
	defer func() { _ = r.Body.Close() }()

	sr, err := GetSnapshotRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	klog.Info(sr.String())

	uid, err := s.async.queue.Submit(sr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(uid))
}

func (s *HttpServer) getSnapshotResult(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get(KeyUID)
	if len(uid) == 0 {
		http.Error(w, "must specify request uid", http.StatusBadRequest)
		return
	}

	res := s.async.queue.Get(uid)
	if res.Status != http.StatusOK {
		http.Error(w, res.Message, res.Status)
		return
	}
	writeJSON(w, res.Ret)
}

// RouteResponse is the wire form of a route.
type RouteResponse struct {
	Src        topology.SwitchID        `json:"src"`
	Dst        topology.SwitchID        `json:"dst"`
	Cookie     int64                    `json:"cookie"`
	Path       []topology.NodePortTuple `json:"path"`
	RouteCount int                      `json:"routeCount"`
}

func newRouteResponse(r *topology.Route) *RouteResponse {
	return &RouteResponse{
		Src:        r.ID.Src,
		Dst:        r.ID.Dst,
		Cookie:     r.ID.Cookie,
		Path:       r.Path,
		RouteCount: r.RouteCount,
	}
}

// route serves a switch-to-switch route, or a port-to-port route when
// both src_port and dst_port are given.
func (s *HttpServer) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	src, dst, httpErr := switchPair(q.Get(KeySrc), q.Get(KeyDst))
	if httpErr != nil {
		http.Error(w, httpErr.Error(), httpErr.Code())
		return
	}

	var cookie int64
	if str := q.Get(KeyCookie); len(str) != 0 {
		var err error
		if cookie, err = strconv.ParseInt(str, 0, 64); err != nil {
			http.Error(w, fmt.Sprintf("invalid cookie %q", str), http.StatusBadRequest)
			return
		}
	}

	t := s.engine.Current()
	var route *topology.Route
	if q.Has(KeySrcPort) || q.Has(KeyDstPort) {
		srcPort, err := topology.ParsePortID(q.Get(KeySrcPort))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dstPort, err := topology.ParsePortID(q.Get(KeyDstPort))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		route = t.GetPortRoute(src, srcPort, dst, dstPort, cookie)
	} else {
		route = t.GetRoute(src, dst, cookie)
	}

	if route == nil {
		http.Error(w, fmt.Sprintf("no route from %s to %s", src, dst), http.StatusNotFound)
		return
	}
	writeJSON(w, newRouteResponse(route))
}

func (s *HttpServer) routes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	src, dst, httpErr := switchPair(q.Get(KeySrc), q.Get(KeyDst))
	if httpErr != nil {
		http.Error(w, httpErr.Error(), httpErr.Code())
		return
	}

	routes := s.engine.Current().GetRoutes(src, dst)
	if len(routes) == 0 {
		http.Error(w, fmt.Sprintf("no route from %s to %s", src, dst), http.StatusNotFound)
		return
	}
	resp := make([]*RouteResponse, 0, len(routes))
	for _, route := range routes {
		resp = append(resp, newRouteResponse(route))
	}
	writeJSON(w, resp)
}

// PortInfo describes how the active topology treats a switch port.
type PortInfo struct {
	Switch                   topology.SwitchID       `json:"switch"`
	Port                     topology.PortID         `json:"port"`
	OpenflowDomain           topology.SwitchID       `json:"openflowDomain"`
	L2Domain                 topology.SwitchID       `json:"l2Domain"`
	Allowed                  bool                    `json:"allowed"`
	AttachmentPoint          bool                    `json:"attachmentPoint"`
	IncomingBroadcastAllowed bool                    `json:"incomingBroadcastAllowed"`
	BroadcastDomainPorts     []topology.NodePortTuple `json:"broadcastDomainPorts,omitempty"`
}

func (s *HttpServer) port(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	sw, err := topology.ParseSwitchID(q.Get(KeySwitch))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	port, err := topology.ParsePortID(q.Get(KeyPort))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t := s.engine.Current()
	writeJSON(w, &PortInfo{
		Switch:                   sw,
		Port:                     port,
		OpenflowDomain:           t.GetOpenflowDomainID(sw),
		L2Domain:                 t.GetL2DomainID(sw),
		Allowed:                  t.IsAllowed(sw, port),
		AttachmentPoint:          t.IsAttachmentPointPort(sw, port),
		IncomingBroadcastAllowed: t.IsIncomingBroadcastAllowedOnSwitchPort(sw, port),
		BroadcastDomainPorts:     t.GetBroadcastDomainPortsOf(topology.NewNodePortTuple(sw, port)),
	})
}

func (s *HttpServer) topology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		return
	}

	dump := s.engine.Current().Dump()
	switch format := r.URL.Query().Get(KeyFormat); format {
	case "", "json":
		writeJSON(w, dump)
	case "yaml":
		data, err := yaml.Marshal(dump)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
	}
}

func switchPair(srcStr, dstStr string) (topology.SwitchID, topology.SwitchID, *httperr.Error) {
	src, err := topology.ParseSwitchID(srcStr)
	if err != nil {
		return 0, 0, httperr.NewError(http.StatusBadRequest, err.Error())
	}
	dst, err := topology.ParseSwitchID(dstStr)
	if err != nil {
		return 0, 0, httperr.NewError(http.StatusBadRequest, err.Error())
	}
	return src, dst, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
