package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

// profiles lists the runtime profiles served by name.
var profiles = []string{"heap", "allocs", "goroutine", "threadcreate", "block", "mutex"}

// SetupOpsRoutes injects internal operations related endpoints. The log
// level endpoint is only available once a level is attached to the api.
func (api *APIHandler) SetupOpsRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	routes := map[string]httprouter.Handle{
		"/ops/configs":     api.GetConfigs,
		"/ops/stats":       api.GetStatistics,
		"/ops/maintenance": api.Maintenance,
		"/ops/metrics":     api.GetMetrics,
		"/ops/debug/vars":  GetMemStats,
		"/ops/debug/gc":    api.RunGC,
		"/ops/debug/fos":   api.FreeOSMemory,
	}
	for path, handle := range routes {
		router.GET(path, m.ops(handle))
	}

	if api.logLevel != nil {
		level := api.OpsHandlerWrapper(api.logLevel)
		router.GET("/ops/loglevel", m.ops(level))
		router.PUT("/ops/loglevel", m.ops(level))
	}

	if !api.config.ProfilerEndpointsEnable {
		return router
	}

	router.GET("/ops/debug/pprof/", m.ops(api.OpsHandlerWrapper(http.HandlerFunc(pprof.Index))))
	router.GET("/ops/debug/pprof/profile", m.ops(api.GetCPUProfile))
	router.GET("/ops/debug/pprof/trace", m.ops(api.GetTraceProfile))
	router.GET("/ops/debug/pprof/symbol", m.ops(api.GetSymbol))
	router.GET("/ops/debug/pprof/cmdline", m.ops(api.GetCmdLine))
	for _, name := range profiles {
		router.GET("/ops/debug/pprof/"+name, m.ops(api.OpsHandlerWrapper(pprof.Handler(name))))
	}
	return router
}
