// Package config loads the settings of a report run from a dot-env file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// Setting keys as they appear in the environment and the dot-env file.
const (
	KeyAPIKey         = "GITHUB_API_KEY"
	KeyOrganization   = "GITHUB_ORGANIZATION"
	KeyProjectName    = "GITHUB_PROJECT_NAME"
	KeyProjectNumber  = "GITHUB_PROJECT_NUMBER"
	KeyFinishedColumn = "GITHUB_PROJECT_FINISHED_COLUMN"
	KeyStatusField    = "GITHUB_PROJECT_STATUS_FIELD"
	KeyDomain         = "GITHUB_DOMAIN"
	KeyPDFSavePath    = "PDF_SAVE_PATH"
	KeyTemplatePath   = "COVERPAGE_TEMPLATE_PATH"
	KeyClientName     = "CLIENT_NAME"
	KeyClientContact  = "CLIENT_CONTACT"
	KeyReportProject  = "PROJECT_NAME"
	KeyOutputPath     = "OUTPUT_PATH"
	KeyListStyle      = "REPORT_LIST_STYLE"
	KeyClosingStyle   = "REPORT_CLOSING_STYLE"
	KeyLoginURL       = "PRINT_LOGIN_URL"
	KeyLoginTimeout   = "PRINT_LOGIN_TIMEOUT"
	KeySettleDelay    = "PRINT_SETTLE_DELAY"
	KeySaveDelay      = "PRINT_SAVE_DELAY"
	KeyChromePath     = "CHROME_PATH"
)

const (
	DefaultDomain       = "github.com"
	DefaultStatusField  = "Status"
	DefaultListStyle    = "List Paragraph"
	DefaultClosingStyle = "Closing Paragraph"
	DefaultLoginTimeout = 320 * time.Second
	DefaultSettleDelay  = time.Second
	DefaultSaveDelay    = 500 * time.Millisecond
)

// mandatoryKeys are checked in this order; the first one missing is reported.
var mandatoryKeys = []string{
	KeyAPIKey,
	KeyOrganization,
	KeyFinishedColumn,
	KeyPDFSavePath,
	KeyTemplatePath,
	KeyClientName,
	KeyClientContact,
	KeyReportProject,
	KeyOutputPath,
}

var optionalKeys = []string{
	KeyProjectName,
	KeyProjectNumber,
	KeyStatusField,
	KeyDomain,
	KeyListStyle,
	KeyClosingStyle,
	KeyLoginURL,
	KeyLoginTimeout,
	KeySettleDelay,
	KeySaveDelay,
	KeyChromePath,
}

// Config holds all configuration parameters of one run. It is never modified
// after Load returns.
type Config struct {
	GitHub GitHubConfig
	Print  PrintConfig
	Report ReportConfig
}

// GitHubConfig holds the tracker settings.
type GitHubConfig struct {
	Token        string
	Domain       string
	Organization string
	// ProjectName selects the classic project when ProjectNumber is zero.
	ProjectName    string
	ProjectNumber  int
	FinishedColumn string
	StatusField    string
}

// PrintConfig holds the browser automation settings.
type PrintConfig struct {
	SaveDir      string
	LoginURL     string
	LoginTimeout time.Duration
	SettleDelay  time.Duration
	// SaveDelay is only used when the browser cannot render PDFs directly
	// and the native print dialog has to be given time to save.
	SaveDelay  time.Duration
	ChromePath string
}

// ReportConfig holds the cover document settings.
type ReportConfig struct {
	TemplatePath  string
	OutputPath    string
	ClientName    string
	ClientContact string
	ProjectName   string
	ListStyle     string
	ClosingStyle  string
}

// Strategy names the tracker API generation a configuration targets.
type Strategy string

const (
	StrategyProjectItems Strategy = "graphql"
	StrategyColumns      Strategy = "rest"
)

// Strategy reports which tracker query strategy the configuration selects.
// A project number wins over a project name.
func (c *Config) Strategy() Strategy {
	if c.GitHub.ProjectNumber > 0 {
		return StrategyProjectItems
	}
	return StrategyColumns
}

// SecretLookup returns a stored secret for a setting key.
type SecretLookup func(key string) (string, error)

// Option customizes Load.
type Option func(*loader)

type loader struct {
	secrets SecretLookup
}

// WithSecretLookup supplies GITHUB_API_KEY from a secret store when neither
// the environment nor the dot-env file carries it.
func WithSecretLookup(lookup SecretLookup) Option {
	return func(l *loader) {
		l.secrets = lookup
	}
}

// Load reads the dot-env file at envPath, overlays the process environment
// and validates the result. A missing dot-env file is not an error.
func Load(envPath string, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()
	v.SetConfigFile(envPath)
	v.SetConfigType("env")
	for _, key := range append(append([]string{}, mandatoryKeys...), optionalKeys...) {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrConfig, envPath, err)
		}
	}

	values := make(map[string]string, len(mandatoryKeys)+len(optionalKeys))
	for _, key := range append(append([]string{}, mandatoryKeys...), optionalKeys...) {
		values[key] = strings.TrimSpace(v.GetString(key))
	}

	if values[KeyAPIKey] == "" && l.secrets != nil {
		secret, err := l.secrets(KeyAPIKey)
		if err != nil {
			return nil, fmt.Errorf("%w: please set %s before proceeding (keyring lookup failed: %v)", domain.ErrConfig, KeyAPIKey, err)
		}
		values[KeyAPIKey] = strings.TrimSpace(secret)
	}

	return build(values)
}

// build validates raw values and converts them into a Config.
func build(values map[string]string) (*Config, error) {
	for _, key := range mandatoryKeys {
		if values[key] == "" {
			return nil, fmt.Errorf("%w: please set %s before proceeding", domain.ErrConfig, key)
		}
	}

	projectNumber := 0
	if raw := values[KeyProjectNumber]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrConfig, KeyProjectNumber, raw)
		}
		projectNumber = n
	}
	if projectNumber == 0 && values[KeyProjectName] == "" {
		return nil, fmt.Errorf("%w: please set %s or %s before proceeding", domain.ErrConfig, KeyProjectNumber, KeyProjectName)
	}

	loginTimeout, err := parseDuration(KeyLoginTimeout, values[KeyLoginTimeout], DefaultLoginTimeout)
	if err != nil {
		return nil, err
	}
	settleDelay, err := parseDuration(KeySettleDelay, values[KeySettleDelay], DefaultSettleDelay)
	if err != nil {
		return nil, err
	}
	saveDelay, err := parseDuration(KeySaveDelay, values[KeySaveDelay], DefaultSaveDelay)
	if err != nil {
		return nil, err
	}

	githubDomain := orDefault(values[KeyDomain], DefaultDomain)

	return &Config{
		GitHub: GitHubConfig{
			Token:          values[KeyAPIKey],
			Domain:         githubDomain,
			Organization:   values[KeyOrganization],
			ProjectName:    values[KeyProjectName],
			ProjectNumber:  projectNumber,
			FinishedColumn: values[KeyFinishedColumn],
			StatusField:    orDefault(values[KeyStatusField], DefaultStatusField),
		},
		Print: PrintConfig{
			SaveDir:      values[KeyPDFSavePath],
			LoginURL:     orDefault(values[KeyLoginURL], fmt.Sprintf("https://%s/login", githubDomain)),
			LoginTimeout: loginTimeout,
			SettleDelay:  settleDelay,
			SaveDelay:    saveDelay,
			ChromePath:   values[KeyChromePath],
		},
		Report: ReportConfig{
			TemplatePath:  values[KeyTemplatePath],
			OutputPath:    values[KeyOutputPath],
			ClientName:    values[KeyClientName],
			ClientContact: values[KeyClientContact],
			ProjectName:   values[KeyReportProject],
			ListStyle:     orDefault(values[KeyListStyle], DefaultListStyle),
			ClosingStyle:  orDefault(values[KeyClosingStyle], DefaultClosingStyle),
		},
	}, nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(key, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("%w: %s must not be negative", domain.ErrConfig, key)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s is not a valid duration: %q", domain.ErrConfig, key, raw)
	}
	return d, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
