package ocm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/station"
	"github.com/kilianp07/evreco/infra/logger"
)

// ServerMock serves a fixed set of stations with the OpenChargeMap POI
// query interface. It is used for local runs and QA.
type ServerMock struct {
	addr     string
	stations []model.RawStation
	log      logger.Logger
	srv      *http.Server
	requests *prometheus.CounterVec
}

// LoadFixtures reads a JSON array of raw stations.
func LoadFixtures(path string) ([]model.RawStation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out, _, err := model.DecodeRawStations(data)
	if err != nil {
		return nil, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return out, nil
}

// NewServerMock creates a mock server and registers its request counter on
// reg. If reg is nil the default registerer is used.
func NewServerMock(addr string, stations []model.RawStation, reg prometheus.Registerer) *ServerMock {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	log := logger.New("ocm-server-mock")

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocm_mock_requests_total",
		Help: "Requests served by the OpenChargeMap mock",
	}, []string{"status"})
	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				requests = exist
			} else {
				log.Errorf("existing collector for ocm_mock_requests_total has wrong type %T", are.ExistingCollector)
			}
		}
	}
	return &ServerMock{addr: addr, stations: stations, log: log, requests: requests}
}

// Handler returns the HTTP routes of the mock.
func (s *ServerMock) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("pong")); err != nil {
			s.log.Errorf("write pong: %v", err)
		}
	})
	mux.HandleFunc("/v3/poi", s.handlePOI)
	mux.HandleFunc("/v3/poi/", s.handlePOI)
	return mux
}

func (s *ServerMock) handlePOI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.requests.WithLabelValues("405").Inc()
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLon != nil {
		s.requests.WithLabelValues("400").Inc()
		http.Error(w, "latitude and longitude are required", http.StatusBadRequest)
		return
	}
	radius, err := strconv.ParseFloat(q.Get("distance"), 64)
	if err != nil || radius <= 0 {
		radius = 10
	}
	limit, err := strconv.Atoi(q.Get("maxresults"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	origin := model.Point{Lat: lat, Lon: lon}
	out := make([]model.RawStation, 0, limit)
	for _, st := range s.stations {
		pos, ok := st.Coordinates()
		if !ok {
			out = append(out, st)
		} else if d := station.Haversine(origin, pos); d <= radius {
			st.AddressInfo = withDistance(st.AddressInfo, d)
			out = append(out, st)
		}
		if len(out) == limit {
			break
		}
	}
	s.requests.WithLabelValues("200").Inc()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Errorf("encode stations: %v", err)
	}
}

func withDistance(a *model.RawAddress, d float64) *model.RawAddress {
	cp := *a
	cp.Distance = &d
	return &cp
}

// Addr returns the listening address once Start has been called.
func (s *ServerMock) Addr() string { return s.addr }

// Start runs the HTTP server until the context is canceled.
func (s *ServerMock) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("OpenChargeMap mock listening on %s", s.addr)
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
