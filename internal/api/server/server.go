package server

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/notify-scheduler/internal/config"
)

// New builds the API server with the timeouts from the server config.
func New(cfg config.Server, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:         cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
