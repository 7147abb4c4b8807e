package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/evreco/app"
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/factory"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/prediction"
	"github.com/kilianp07/evreco/core/records"
	"github.com/kilianp07/evreco/infra/mqtt"
	"github.com/kilianp07/evreco/infra/ocm"
	"github.com/kilianp07/evreco/test/util"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// report writes a one-case JUnit file into E2E_REPORT_DIR, or a temp dir.
func report(t *testing.T, start time.Time) {
	dir := os.Getenv("E2E_REPORT_DIR")
	if dir == "" {
		dir = t.TempDir()
	}
	c := junitTestCase{Name: t.Name(), Time: time.Since(start).Seconds()}
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{c}}
	if t.Failed() {
		msg := "failed"
		rep.Failures = 1
		rep.Cases[0].Failure = &msg
	}
	if err := writeJUnit(filepath.Join(dir, t.Name()+".xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

// startInflux starts an InfluxDB 2.7 container initialised with org, bucket
// and token, and returns it along with the base URL.
func startInflux(ctx context.Context, t *testing.T, org, bucket, token string) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "evreco",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "evreco-e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startOCM serves the Paris fixtures with the OpenChargeMap mock.
func startOCM(ctx context.Context, t *testing.T) string {
	t.Helper()
	stations, err := ocm.LoadFixtures(filepath.Join("..", "infra", "ocm", "testdata", "paris.json"))
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	srv := httptest.NewServer(ocm.NewServerMock("", stations, prometheus.NewRegistry()).Handler())
	t.Cleanup(srv.Close)
	waitCtx, cancel := context.WithTimeout(ctx, util.ServerTimeout)
	defer cancel()
	if err := util.WaitForServer(waitCtx, srv.URL+"/ping"); err != nil {
		t.Fatalf("ocm mock: %v", err)
	}
	return srv.URL
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func baseConfig(t *testing.T, ocmURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.RateLimitPerMinute = -1
	cfg.Discovery.OCM.BaseURL = ocmURL + "/v3/poi"
	cfg.Records = records.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "recs.jsonl")}
	cfg.Records.SetDefaults()
	cfg.Logging.Level = "error"
	return cfg
}

func recommend(t *testing.T, h http.Handler) model.Result {
	t.Helper()
	body := bytes.NewBufferString(`{"latitude": 48.8566, "longitude": 2.3522}`)
	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", body)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("recommend: status %d: %s", rr.Code, rr.Body.String())
	}
	var res model.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

// Test_E2E_ModelOverMQTT runs the full service with its model reached through
// a real Mosquitto broker and a responder bridging a mock model.
func Test_E2E_ModelOverMQTT(t *testing.T) {
	requireDocker(t)
	start := time.Now()
	defer report(t, start)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer cleanup()
	t.Logf("Mosquitto started at %s", broker)

	backend := &prediction.MockModelClient{Default: 3, Ratings: map[string]float64{"104": 4.9}}
	responder, err := mqtt.NewResponder(ctx, mqtt.Config{Broker: broker, ClientID: "e2e-responder"}, backend, 5*time.Second)
	if err != nil {
		t.Fatalf("responder: %v", err)
	}
	defer responder.Close()

	cfg := baseConfig(t, startOCM(ctx, t))
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "e2e-service"
	cfg.Prediction = config.PredictionConfig{Type: "mqtt"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	res := recommend(t, svc.Handler())
	if res.Strategy != model.StrategyModel {
		t.Fatalf("expected model strategy, got %s", res.Strategy)
	}
	if len(res.Stations) == 0 || res.Stations[0].ID.String() != "104" {
		t.Fatalf("expected station 104 first, got %+v", res.Stations)
	}
	if backend.Calls() != 1 {
		t.Fatalf("expected one backend call, got %d", backend.Calls())
	}
}

// Test_E2E_InfluxSink checks that served recommendations reach InfluxDB
// through the event bus collector.
func Test_E2E_InfluxSink(t *testing.T) {
	requireDocker(t)
	start := time.Now()
	defer report(t, start)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	org, bucket, token := "e2e_org", "e2e_bucket", "e2e-token"
	cont, influxURL := startInflux(ctx, t, org, bucket, token)
	defer cont.Terminate(context.Background()) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)

	cli := NewInfluxClient(influxURL, org, bucket, token)
	defer cli.Close()
	if err := cli.SetupBucket(ctx); err != nil {
		t.Fatalf("setup bucket: %v", err)
	}

	cfg := baseConfig(t, startOCM(ctx, t))
	cfg.Server.Addr = freeAddr(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": influxURL, "token": token, "org": org, "bucket": bucket},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	readyCtx, ready := context.WithTimeout(ctx, util.ServerTimeout)
	defer ready()
	if err := util.WaitForServer(readyCtx, "http://"+cfg.Server.Addr+"/health"); err != nil {
		t.Fatalf("service: %v", err)
	}

	res := recommend(t, svc.Handler())
	if res.Strategy != model.StrategyFallback {
		t.Fatalf("expected fallback strategy, got %s", res.Strategy)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		n, err := cli.CountPoints(ctx, "recommendation_served")
		if err == nil && n > 0 {
			t.Logf("Influx returned %d recommendation values", n)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no recommendation_served points in Influx (last error: %v)", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}
