package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models assetline.yml.
type Config struct {
	Workflow struct {
		ManagerRole     string   `yaml:"manager_role" json:"manager_role"`
		ManagerGrade    string   `yaml:"manager_grade" json:"manager_grade"`
		PICRole         string   `yaml:"pic_role" json:"pic_role"`
		AdminRole       string   `yaml:"admin_role" json:"admin_role"`
		ElevatedReaders []string `yaml:"elevated_readers" json:"elevated_readers"`
	} `yaml:"workflow" json:"workflow"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles" json:"roles"`
	} `yaml:"rbac" json:"rbac"`
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
		DevLogin bool   `yaml:"dev_login" json:"dev_login"`
	} `yaml:"server" json:"server"`
	Auth struct {
		JWTSecretEnv string `yaml:"jwt_secret_env" json:"jwt_secret_env"`
	} `yaml:"auth" json:"auth"`
	Idempotency struct {
		RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
		TTL       string `yaml:"ttl" json:"ttl"`
	} `yaml:"idempotency" json:"idempotency"`
	Log struct {
		Level    string `yaml:"level" json:"level"`
		Encoding string `yaml:"encoding" json:"encoding"`
	} `yaml:"log" json:"log"`
}

type RBACRole struct {
	Description string `yaml:"description" json:"description"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with al config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workflow.ManagerRole == "" {
		return fmt.Errorf("config.workflow.manager_role is required")
	}
	if c.Workflow.ManagerGrade == "" {
		return fmt.Errorf("config.workflow.manager_grade is required")
	}
	if c.Workflow.PICRole == "" {
		return fmt.Errorf("config.workflow.pic_role is required")
	}
	if c.Workflow.AdminRole == "" {
		return fmt.Errorf("config.workflow.admin_role is required")
	}
	if c.Workflow.ManagerRole == c.Workflow.PICRole {
		return fmt.Errorf("config.workflow.manager_role and pic_role must differ")
	}
	if len(c.RBAC.Roles) > 0 {
		for _, required := range []string{c.Workflow.ManagerRole, c.Workflow.PICRole, c.Workflow.AdminRole} {
			if _, ok := c.RBAC.Roles[required]; !ok {
				return fmt.Errorf("config.rbac.roles must include %s", required)
			}
		}
		for roleID := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
		}
		for _, roleID := range c.Workflow.ElevatedReaders {
			if _, ok := c.RBAC.Roles[roleID]; !ok {
				return fmt.Errorf("elevated reader references unknown role %s", roleID)
			}
		}
	}
	if c.Idempotency.TTL != "" {
		if _, err := time.ParseDuration(c.Idempotency.TTL); err != nil {
			return fmt.Errorf("config.idempotency.ttl: %w", err)
		}
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.encoding must be json or console")
	}
	return nil
}

// IdempotencyTTL returns the configured key lifetime, 24h when unset.
func (c *Config) IdempotencyTTL() time.Duration {
	if c.Idempotency.TTL == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(c.Idempotency.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "assetline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `workflow:
  manager_role: manager
  manager_grade: "7"
  pic_role: pic
  admin_role: admin
  elevated_readers: [pic, admin]

rbac:
  roles:
    admin:
      description: "Full access, may return items on behalf of requesters"
    manager:
      description: "First-stage approver (grade gated)"
    pic:
      description: "Person in charge; second-stage approver"
    employee:
      description: "May create borrow requests"

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  dev_login: false

auth:
  jwt_secret_env: ASSETLINE_JWT_SECRET

idempotency:
  redis_addr: ""
  ttl: 24h

log:
  level: info
  encoding: json
`
