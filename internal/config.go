package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notely/internal/generator"
	"github.com/starford/notely/internal/noteservice"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Generator GeneratorConfig   `yaml:"generator"`
	Notes     NotesConfig       `yaml:"notes"`
	Identity  IdentityConfig    `yaml:"identity"`
	MCP       MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.Generator, &c.Notes, &c.Identity, &c.MCP,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	CORS     CORSConfig `yaml:"cors"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.CORS.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Validate validates the CORS configuration.
func (c *CORSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AllowedOrigins, validation.Each(validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how bearer credentials are resolved to an owner:
//   - "disabled" (default): every request acts as DevOwner, suitable for local dev.
//   - "token": a single static Token maps to DevOwner.
//   - "jwt": HS256 access tokens signed with JWTSecret; the sub claim is the owner.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
	DevOwner  string `yaml:"dev_owner"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeJWT)),
		validation.Field(&c.DevOwner, validation.When(c.Mode != AuthModeJWT, validation.Required)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.Mode == AuthModeJWT && c.JWTSecret == "" {
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when requests must carry a credential.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != AuthModeDisabled
}

// GeneratorConfig configures the Gemini summary and tag generator.
// An empty APIKey disables generation.
type GeneratorConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// Options converts the section into generator options.
func (c *GeneratorConfig) Options() generator.Options {
	return generator.Options{APIKey: c.APIKey, Model: c.Model, Timeout: c.Timeout}
}

// NotesConfig holds the note listing and summary settings.
type NotesConfig struct {
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
	SummaryThreshold int `yaml:"summary_threshold"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultLimit, validation.Required, validation.Min(1), validation.Max(c.MaxLimit)),
		validation.Field(&c.SummaryThreshold, validation.Min(0)),
	)
}

// Service converts the section into note service settings.
func (c *NotesConfig) Service() noteservice.Config {
	return noteservice.Config{
		DefaultLimit:     c.DefaultLimit,
		MaxLimit:         c.MaxLimit,
		SummaryThreshold: c.SummaryThreshold,
	}
}

// IdentityConfig points at the identity provider used for magic-link
// sign-in. An empty SupabaseURL disables /api/auth/send-token.
type IdentityConfig struct {
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`
	RedirectURL string `yaml:"redirect_url"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SupabaseURL, is.URL),
		validation.Field(&c.SupabaseKey, validation.When(c.SupabaseURL != "", validation.Required)),
		validation.Field(&c.RedirectURL, is.URL),
	)
}

// MCPConfig configures the stdio MCP server.
type MCPConfig struct {
	// OwnerID is the owner every MCP tool call acts as.
	OwnerID string `yaml:"owner_id"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OwnerID, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	svc := noteservice.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3000,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:5173"},
			},
		},
		SQLite: SQLiteConfig{
			Path: "./notely.db",
		},
		Auth: AuthConfig{
			Mode:     AuthModeDisabled,
			DevOwner: "dev",
		},
		Generator: GeneratorConfig{
			Model:   generator.DefaultModel,
			Timeout: generator.DefaultTimeout,
		},
		Notes: NotesConfig{
			DefaultLimit:     svc.DefaultLimit,
			MaxLimit:         svc.MaxLimit,
			SummaryThreshold: svc.SummaryThreshold,
		},
		MCP: MCPConfig{
			OwnerID: "dev",
		},
	}
}
