package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite3 only
	}

	ServerConfig struct {
		Address                   string
		Host                      string
		BaseURL                   string // public URL of the API, uploaded files are linked under it
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	ListingConfig struct {
		AdminPageSize  int
		FeedPageSize   int
		SearchWindow   int
		HallOfFameSize int
	}

	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string
		Build                     string
		AppName                   string
		WorkDir                   string
		SecretKey                 string
		RootAdminEmail            string
		FrontendBaseURL           string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		BlobPath                  string
		Database                  DatabaseConfig
		Server                    ServerConfig
		Listing                   ListingConfig

		defaultFromEmail string
	}
)

func (c *DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Env vars are prefixed with the upper-cased ENV (DEV by default), eg. DEV_SECRETKEY, PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Gallery")
	v.SetDefault("secretKey", "6@k^v!z2$u1x)q9+e&p7-wlc0m#dhr5(yg3=fa8*jn4bs_ito")
	v.SetDefault("rootAdminEmail", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Gallery <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("blob.path", "gallery-blobs.db")

	v.SetDefault("database.engine", "sqlite3")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "gallery")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "gallery.db")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.baseURL", "http://localhost:8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("listing.adminPageSize", 10)
	v.SetDefault("listing.feedPageSize", 12)
	v.SetDefault("listing.searchWindow", 30)
	v.SetDefault("listing.hallOfFameSize", 10)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		RootAdminEmail:            CleanString(v.GetString("rootAdminEmail"), true /* lower */),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		BlobPath:                  v.GetString("blob.path"),
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Server: ServerConfig{
			Address:                   v.GetString("server.address"),
			Host:                      v.GetString("server.host"),
			BaseURL:                   strings.TrimSuffix(v.GetString("server.baseURL"), "/"),
			DebugHost:                 v.GetString("server.debugHost"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Listing: ListingConfig{
			AdminPageSize:  v.GetInt("listing.adminPageSize"),
			FeedPageSize:   v.GetInt("listing.feedPageSize"),
			SearchWindow:   v.GetInt("listing.searchWindow"),
			HallOfFameSize: v.GetInt("listing.hallOfFameSize"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suited for tests: sqlite in memory, no external services.
func NewTestConfig() *Config {
	return &Config{
		Debug:                     true,
		TestMode:                  true,
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Gallery",
		SecretKey:                 "test-secret",
		RootAdminEmail:            "root@gallery.test",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Database:                  DatabaseConfig{Engine: "sqlite3", Path: ":memory:"},
		Server: ServerConfig{
			BaseURL:                   "http://localhost:8000",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Listing: ListingConfig{
			AdminPageSize:  10,
			FeedPageSize:   12,
			SearchWindow:   30,
			HallOfFameSize: 10,
		},
		defaultFromEmail: "Gallery <noreply@gallery.test>",
	}
}
