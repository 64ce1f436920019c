package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/K33P-repo/k33p-backend/pkg/logger"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Logger       logger.Config      `yaml:"logger"`
	Indexer      IndexerConfig      `yaml:"indexer"`
	Wallet       WalletConfig       `yaml:"wallet"`
	Verification VerificationConfig `yaml:"verification"`
	Chain        ChainConfig        `yaml:"chain"`
	Security     SecurityConfig     `yaml:"security"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	InMemory        bool   `yaml:"in_memory"`
}

// IndexerConfig configures the read-only ledger-indexing service client.
type IndexerConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// WalletConfig configures the wallet service used to build and
// broadcast refund transactions.
type WalletConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type VerificationConfig struct {
	DepositAddress    string        `yaml:"deposit_address"`
	ExpectedAmount    string        `yaml:"expected_amount"` // lovelace
	MinConfirmations  int           `yaml:"min_confirmations"`
	MaxTxAge          time.Duration `yaml:"max_tx_age"`
	ScanWindow        int           `yaml:"scan_window"`
	StrictSenderMatch bool          `yaml:"strict_sender_match"`
	CandidateTimeout  time.Duration `yaml:"candidate_timeout"`
	SweepDelay        time.Duration `yaml:"sweep_delay"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SweepBatchSize    int           `yaml:"sweep_batch_size"`
}

// ChainConfig carries the protocol parameters the on-chain validator
// predicates are evaluated against.
type ChainConfig struct {
	MinOutputLovelace uint64        `yaml:"min_output_lovelace"`
	RefundLovelace    uint64        `yaml:"refund_lovelace"`
	MaxValidityWindow time.Duration `yaml:"max_validity_window"`
}

type SecurityConfig struct {
	APIKey         string `yaml:"api_key"`
	CommitmentSalt string `yaml:"commitment_salt"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	CheckOrigin     bool          `yaml:"check_origin"`
	PingPeriod      time.Duration `yaml:"ping_period"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	var config Config
	configData, err := os.ReadFile("./config.yaml")
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
