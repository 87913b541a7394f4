package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath      string     `env:"DB_PATH" envDefault:"clients.db"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat   string     `env:"LOG_FORMAT" envDefault:"json"`
	StaticDir   string     `env:"STATIC_DIR" envDefault:"static"`
	AdminSecret string     `env:"ADMIN_SECRET"`
	Daemon      bool       `env:"DAEMON" envDefault:"false"`
	HTTPS       bool       `env:"HTTPS" envDefault:"false"`
	TLSCertFile string     `env:"TLS_CERT_FILE"`
	TLSKeyFile  string     `env:"TLS_KEY_FILE"`
	RedisURL    string     `env:"REDIS_URL"`
	CORSOrigins []string   `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// ErrHelp is returned when -h/--help was requested; usage has already been printed.
var ErrHelp = flag.ErrHelp

// Load reads .env (if present), then the environment, then command line
// flags. Flags win over the environment.
func Load(args []string, usage io.Writer) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.parseFlags(args, usage); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) parseFlags(args []string, usage io.Writer) error {
	fs := flag.NewFlagSet("colorwar", flag.ContinueOnError)
	fs.SetOutput(usage)

	var port int
	fs.IntVar(&port, "port", 0, "Port to use")
	fs.IntVar(&port, "p", 0, "Port to use (shorthand)")
	fs.StringVar(&c.AdminSecret, "admin", c.AdminSecret, "Secret for admin access")
	fs.StringVar(&c.AdminSecret, "a", c.AdminSecret, "Secret for admin access (shorthand)")
	fs.BoolVar(&c.Daemon, "daemon", c.Daemon, "Run as daemon")
	fs.BoolVar(&c.Daemon, "d", c.Daemon, "Run as daemon (shorthand)")
	fs.BoolVar(&c.HTTPS, "https", c.HTTPS, "Use HTTPS")
	fs.BoolVar(&c.HTTPS, "s", c.HTTPS, "Use HTTPS (shorthand)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	if port != 0 {
		c.HTTPAddr = ":" + strconv.Itoa(port)
	}
	return nil
}
