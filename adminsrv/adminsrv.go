// Package adminsrv is the router's status/health/metrics HTTP
// surface, built on github.com/valyala/fasthttp (an aistore
// dependency) with github.com/json-iterator/go (also an aistore
// dependency) for the JSON weights snapshot, and the standard
// promhttp handler adapted onto fasthttp for /metrics.
package adminsrv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	jsoniter "github.com/json-iterator/go"

	"github.com/windowrouter/router/internal/nlog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WeightsProvider is implemented by rootrouter.Router.
type WeightsProvider interface {
	Weights() []int32
	GlobalInFlight() int32
}

type weightsSnapshot struct {
	Weights        []int32 `json:"weights"`
	GlobalInFlight int32   `json:"global_in_flight"`
}

// Server is the admin HTTP server.
type Server struct {
	addr string
	srv  *fasthttp.Server
}

// New builds an admin server listening on addr, exposing /healthz,
// /weights (only meaningful on a root; nil provider serves an empty
// snapshot for a child), and /metrics against reg.
func New(addr string, provider WeightsProvider, reg *prometheus.Registry) *Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case "/weights":
			snap := weightsSnapshot{}
			if provider != nil {
				snap.Weights = provider.Weights()
				snap.GlobalInFlight = provider.GlobalInFlight()
			}
			body, err := json.Marshal(snap)
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				return
			}
			ctx.SetContentType("application/json")
			ctx.SetBody(body)
		case "/metrics":
			metricsHandler(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	return &Server{addr: addr, srv: &fasthttp.Server{Handler: handler}}
}

// ListenAndServe blocks until the server stops or errors.
func (s *Server) ListenAndServe() error {
	nlog.Infof("adminsrv: listening on %s", s.addr)
	return s.srv.ListenAndServe(s.addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}
