package harness

import (
	"fmt"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Transport names accepted in Config.Transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// SampleIDs identifies pre-existing entities on the target server that
// read-only checks are pointed at.
type SampleIDs struct {
	WorkItemID string `yaml:"work_item_id"`
	Identifier string `yaml:"identifier"`
	LabelID    string `yaml:"label_id" validate:"required"`
	// SecondLabelID is attached via the batch call and then removed
	// again, so it must differ from LabelID.
	SecondLabelID string `yaml:"second_label_id" validate:"required,nefield=LabelID"`
	ProposalID    string `yaml:"proposal_id"`
}

// Timeouts bound the individual wire operations.
type Timeouts struct {
	Call       time.Duration `yaml:"call"`
	Endpoint   time.Duration `yaml:"endpoint"`
	FirstEvent time.Duration `yaml:"first_event"`
	Message    time.Duration `yaml:"message"`
}

// Config describes one regression run.
type Config struct {
	// BaseURL is the tool server root; the RPC and event-stream paths
	// hang off it.
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// APIURL is the backing API handed to spawned stdio processes.
	APIURL      string `yaml:"api_url" validate:"required,url"`
	Token       string `yaml:"token" validate:"required"`
	WorkspaceID string `yaml:"workspace_id" validate:"required"`
	ProjectID   string `yaml:"project_id" validate:"required"`
	// ServerPath is the server binary spawned per stdio call.
	ServerPath string `yaml:"server_path"`

	Transports []string `yaml:"transports" validate:"required,min=1,dive,oneof=http stdio sse"`

	// Report, when set, is the path the JSON run report is written to.
	Report   string `yaml:"report"`
	FailFast bool   `yaml:"fail_fast"`

	Samples  SampleIDs `yaml:"samples"`
	Timeouts Timeouts  `yaml:"timeouts"`
}

// DefaultConfig returns a config targeting a local server with the
// standard wire timeouts. Identifiers still have to come from a file,
// flags or the environment.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8090",
		APIURL:     "http://localhost:3000",
		Transports: []string{TransportHTTP, TransportStdio, TransportSSE},
		Timeouts: Timeouts{
			Call:       15 * time.Second,
			Endpoint:   5 * time.Second,
			FirstEvent: 3 * time.Second,
			Message:    10 * time.Second,
		},
	}
}

// LoadFile reads a YAML config, expands ${VAR} references from the
// environment and unmarshals it over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	data, err = envsubst.Bytes(data)
	if err != nil {
		return cfg, fmt.Errorf("expanding env vars: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays the well-known OPENPR_* variables onto the config.
// Environment beats file values, flags beat both.
func (c *Config) ApplyEnv() {
	for env, dst := range map[string]*string{
		"OPENPR_MCP_URL":      &c.BaseURL,
		"OPENPR_API_URL":      &c.APIURL,
		"OPENPR_BOT_TOKEN":    &c.Token,
		"OPENPR_WORKSPACE_ID": &c.WorkspaceID,
		"OPENPR_PROJECT_ID":   &c.ProjectID,
		"OPENPR_SERVER_BIN":   &c.ServerPath,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints plus the cross-field rules the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, name := range c.Transports {
		if name == TransportStdio && c.ServerPath == "" {
			return fmt.Errorf("invalid config: stdio transport requires server_path")
		}
	}
	return nil
}
