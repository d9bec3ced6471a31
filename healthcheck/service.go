package healthcheck

import (
	"context"
	"net/http"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/httpserv"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency whose availability is reported, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func New(database Pinger) *Service {
	return &Service{database: database}
}

type Service struct {
	database Pinger
}

func (s Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealthCheck)
}

func (s Service) handleHealthCheck(writer http.ResponseWriter, request *http.Request) {
	if err := s.database.PingContext(request.Context()); err != nil {
		log.Error().Ctx(request.Context()).Err(err).Msg("Health check: database unavailable")
		httpserv.WriteJSON(writer, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	httpserv.WriteJSON(writer, http.StatusOK, map[string]string{"status": "up"})
}
