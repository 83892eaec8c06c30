package daemon

import (
	"net/http"

	_ "net/http/pprof"

	"go.uber.org/zap"
)

func startPprof(addr string, log *zap.Logger) {
	if addr == "" {
		return
	}
	go func() {
		// Uses DefaultServeMux, which has pprof handlers registered via blank import.
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Info("pprof server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
}
