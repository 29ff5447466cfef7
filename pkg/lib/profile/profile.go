package profile

import (
	"net"
	"net/http"
	"net/http/pprof"
)

type profileConfig struct {
	pprof   bool
	cmdline bool
	profile bool
	symbol  bool
	trace   bool
	remote  bool
}

// Option applies a configuration option to the given config.
type Option func(p *profileConfig)

// WithRemote allows clients other than loopback to fetch profiles.
func WithRemote(remote bool) Option {
	return func(p *profileConfig) {
		p.remote = remote
	}
}

// WithTrace toggles the execution trace handler, which is the most
// expensive one to serve during a long check.
func WithTrace(trace bool) Option {
	return func(p *profileConfig) {
		p.trace = trace
	}
}

func defaultProfileConfig() *profileConfig {
	return &profileConfig{
		pprof:   true,
		cmdline: true,
		profile: true,
		symbol:  true,
		trace:   true,
	}
}

// RegisterHandlers registers profile Handlers with the given ServeMux.
//
// All handlers are registered unless disabled by options. By default
// only loopback clients are served.
func RegisterHandlers(mux *http.ServeMux, options ...Option) {
	config := defaultProfileConfig()
	for _, o := range options {
		o(config)
	}

	guard := requireLoopback
	if config.remote {
		guard = func(h http.Handler) http.Handler { return h }
	}

	if config.pprof {
		mux.Handle("/debug/pprof/", guard(http.HandlerFunc(pprof.Index)))
	}
	if config.cmdline {
		mux.Handle("/debug/pprof/cmdline", guard(http.HandlerFunc(pprof.Cmdline)))
	}
	if config.profile {
		mux.Handle("/debug/pprof/profile", guard(http.HandlerFunc(pprof.Profile)))
	}
	if config.symbol {
		mux.Handle("/debug/pprof/symbol", guard(http.HandlerFunc(pprof.Symbol)))
	}
	if config.trace {
		mux.Handle("/debug/pprof/trace", guard(http.HandlerFunc(pprof.Trace)))
	}
}

func requireLoopback(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}
