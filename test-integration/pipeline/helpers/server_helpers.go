package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	v1 "github.com/seedpost/seedpost/internal/api/v1"
	"github.com/seedpost/seedpost/internal/app"
	"github.com/seedpost/seedpost/internal/config"
)

const (
	// OperatorID is the operator configured by WriteConfigYAML
	OperatorID = int64(42)
	// TargetID is the channel configured by WriteConfigYAML
	TargetID = int64(-1001234567890)
)

// ConfigOptions holds the settings WriteConfigYAML varies between tests
type ConfigOptions struct {
	ListingURL  string
	APIEndpoint string
	LedgerPath  string
	OnCorrupt   string
	MaxSize     string
	Exclude     []string
}

// WriteConfigYAML writes a YAML configuration file for testing into dir
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	onCorrupt := opts.OnCorrupt
	if onCorrupt == "" {
		onCorrupt = config.OnCorruptContinue
	}
	maxSize := opts.MaxSize
	if maxSize == "" {
		maxSize = "2GiB"
	}
	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath = filepath.Join(dir, "data", "uploaded_history.json")
	}

	tokenFile := filepath.Join(dir, "bot-token")
	gomega.Expect(os.WriteFile(tokenFile, []byte("123456:integration\n"), 0600)).To(gomega.Succeed())

	filter := ""
	if len(opts.Exclude) > 0 {
		filter = "  filter:\n    exclude:\n"
		for _, pattern := range opts.Exclude {
			filter += fmt.Sprintf("      - %q\n", pattern)
		}
	}

	configContent := fmt.Sprintf(`listing:
  url: %s
  format: html
  limit: 5
  timeout: 5s
%s
poll:
  interval: 1h

download:
  root: %s

transfer:
  timeout: 1m
  pollInterval: 50ms
  listenPort: 0

publish:
  maxSize: %s

channel:
  target: %d
  operator: %d
  botTokenFile: %s
  apiEndpoint: %s

ledger:
  path: %s
  onCorrupt: %s
`, opts.ListingURL, filter, filepath.Join(dir, "downloads"), maxSize, TargetID, OperatorID,
		tokenFile, opts.APIEndpoint, ledgerPath, onCorrupt)

	configPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}

// ServerTestHelper manages the uploader lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	engine     *FakeEngine
	baseURL    string
	address    string
	httpClient *http.Client
	app        *app.SeedpostApp
	done       chan error
}

// NewServerTestHelper creates a helper for one app instance on a free port
func NewServerTestHelper(ctx context.Context, configPath string, engine *FakeEngine) (*ServerTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		engine:     engine,
		address:    fmt.Sprintf("127.0.0.1:%d", port),
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// BuildApp loads the configuration and builds the application without starting it
func (s *ServerTestHelper) BuildApp() (*app.SeedpostApp, error) {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return app.NewSeedpostApp(s.ctx,
		app.WithConfig(cfg),
		app.WithAddress(s.address),
		app.WithEngine(s.engine),
	)
}

// StartServer builds the application and runs it in the background
func (s *ServerTestHelper) StartServer() error {
	seedpost, err := s.BuildApp()
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = seedpost
	s.done = make(chan error, 1)

	go func() {
		s.done <- seedpost.Start()
	}()
	return nil
}

// StopServer gracefully stops the uploader and waits for Start to return
func (s *ServerTestHelper) StopServer() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Stop(5 * time.Second)
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("app did not stop in time")
	}
	s.app = nil
	return err
}

// WaitForServerReady waits until the first scan has completed
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// GetStatus fetches /api/v1/status
func (s *ServerTestHelper) GetStatus() (*v1.StatusResponse, error) {
	var out v1.StatusResponse
	if err := s.getJSON("/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLedger fetches /api/v1/ledger
func (s *ServerTestHelper) GetLedger() (*v1.LedgerResponse, error) {
	var out v1.LedgerResponse
	if err := s.getJSON("/api/v1/ledger", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get makes a GET request to path
func (s *ServerTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + path)
}

func (s *ServerTestHelper) getJSON(path string, out any) error {
	resp, err := s.Get(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port, nil
}
