package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: the vault PIN is prompted at runtime and stored in memory - use GetPINBytes()
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	VaultFilePath      string `envconfig:"VAULT_FILE_PATH" default:"identity.vault"`
	VaultKDFIterations int    `envconfig:"VAULT_KDF_ITERATIONS" default:"210000"`

	// DatabaseURL selects the Postgres store; empty keeps the ledger in memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	MirrorBaseURL    string        `envconfig:"MIRROR_BASE_URL" required:"true"`
	MirrorToken      string        `envconfig:"MIRROR_TOKEN"`
	MirrorBranch     string        `envconfig:"MIRROR_BRANCH" default:"main"`
	MirrorTimeout    time.Duration `envconfig:"MIRROR_TIMEOUT" default:"15s"`
	MirrorMaxRetries int           `envconfig:"MIRROR_MAX_RETRIES" default:"3"`

	MultisigThreshold       string   `envconfig:"MULTISIG_THRESHOLD" default:"50000"`
	MultisigRequiredSigners int      `envconfig:"MULTISIG_REQUIRED_SIGNERS" default:"2"`
	MultisigSigners         []string `envconfig:"MULTISIG_SIGNERS"`
	// MultisigSignerCapabilities is a list of signer:token pairs; empty leaves signer ids unauthenticated.
	MultisigSignerCapabilities map[string]string `envconfig:"MULTISIG_SIGNER_CAPABILITIES"`

	// AdminToken guards vault management and proposal execution; empty leaves them open.
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	// AuthorityCapabilities is a list of id:token pairs.
	AuthorityCapabilities map[string]string `envconfig:"AUTHORITY_CAPABILITIES"`
	AuthorityIssuers      []string          `envconfig:"AUTHORITY_ISSUERS"`

	GenesisStake          string        `envconfig:"GENESIS_STAKE" default:"0"`
	SettlementMaxAttempts int           `envconfig:"SETTLEMENT_MAX_ATTEMPTS" default:"5"`
	SyncInterval          time.Duration `envconfig:"SYNC_INTERVAL" default:"5m"`
	PayCooldown           int           `envconfig:"PAY_COOLDOWN_MINUTES" default:"0"`

	RateAPIURL     string `envconfig:"RATE_API_URL" default:"https://api.coingecko.com/api/v3"`
	RateCoinID     string `envconfig:"RATE_COIN_ID"`
	RateVsCurrency string `envconfig:"RATE_VS_CURRENCY" default:"usd"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"plain"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c, err := Load()
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Load reads and validates a fresh Config without touching the global instance.
func Load() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MirrorBaseURL) == "" {
		return errors.New("MIRROR_BASE_URL cannot be empty")
	}
	if c.VaultKDFIterations < 100_000 {
		return errors.New("VAULT_KDF_ITERATIONS must be at least 100000")
	}
	if c.MultisigRequiredSigners < 1 {
		return errors.New("MULTISIG_REQUIRED_SIGNERS must be at least 1")
	}
	if len(c.MultisigSigners) > 0 && len(c.MultisigSigners) < c.MultisigRequiredSigners {
		return fmt.Errorf("MULTISIG_SIGNERS lists %d signers but %d are required", len(c.MultisigSigners), c.MultisigRequiredSigners)
	}
	for signer := range c.MultisigSignerCapabilities {
		if !slices.Contains(c.MultisigSigners, signer) {
			return fmt.Errorf("signer %q in MULTISIG_SIGNER_CAPABILITIES is not in MULTISIG_SIGNERS", signer)
		}
	}
	if c.SettlementMaxAttempts < 1 {
		return errors.New("SETTLEMENT_MAX_ATTEMPTS must be at least 1")
	}
	if c.PayCooldown < 0 {
		return errors.New("PAY_COOLDOWN_MINUTES cannot be negative")
	}
	for _, issuer := range c.AuthorityIssuers {
		if _, ok := c.AuthorityCapabilities[issuer]; !ok {
			return fmt.Errorf("issuer %q has no entry in AUTHORITY_CAPABILITIES", issuer)
		}
	}
	if !strings.HasSuffix(c.VaultFilePath, ".vault") {
		return errors.New("VAULT_FILE_PATH must have .vault extension")
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetPayCooldown returns cooldown in minutes from configuration
func GetPayCooldown() int {
	return Get().PayCooldown
}

// GetVaultFilePath returns path to the .vault file from configuration
func GetVaultFilePath() string {
	return Get().VaultFilePath
}

// GetMirrorBaseURL returns the mirror contents API URL from configuration
func GetMirrorBaseURL() string {
	return Get().MirrorBaseURL
}

var pinBytes []byte

// PromptForPIN prompts the user for the vault PIN in the terminal.
// The PIN is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPIN() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter PIN")
	}
	fmt.Fprint(os.Stderr, "Enter vault PIN: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read PIN: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("PIN cannot be empty")
	}

	SetPIN(raw)
	clear(raw)
	return nil
}

// SetPIN stores a copy of pin in memory.
func SetPIN(pin []byte) {
	clear(pinBytes)
	pinBytes = make([]byte, len(pin))
	copy(pinBytes, pin)
}

// ClearPIN wipes the stored PIN.
func ClearPIN() {
	clear(pinBytes)
	pinBytes = nil
}

// GetPINBytes returns the PIN stored in memory (from PromptForPIN).
// Returns an error if the PIN was not set.
// Caller must zero the returned slice after use for security.
func GetPINBytes() ([]byte, error) {
	if len(pinBytes) == 0 {
		return nil, errors.New("PIN not set: call PromptForPIN at startup")
	}
	out := make([]byte, len(pinBytes))
	copy(out, pinBytes)
	return out, nil
}
