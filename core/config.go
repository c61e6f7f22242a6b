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
	Config struct {
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		RollbarToken     string
		FrontendBaseURL  string
		DefaultFromEmail string
		SendgridApiKey   string

		Database DatabaseConfig
		Server   ServerConfig
		Cache    CacheConfig
		Storage  StorageConfig
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool // use in-memory repositories (no DB server)
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	CacheConfig struct {
		RedisAddr  string // empty: in-process LRU
		KeyPrefix  string
		ListingTTL time.Duration
		LRUSize    int
	}

	StorageConfig struct {
		MediaDir  string
		MediaURL  string
		GCSBucket string // empty: local disk
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// FromAddress parses DefaultFromEmail; falls back to a bare address on parse errors.
func (c *Config) FromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	return *addr
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and the environment.
// Env vars are prefixed by the current ENV, e.g. `PROD_DATABASE_HOST`.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Educa")
	v.SetDefault("secretKey", "+)3@5(j$1r=z2h!x&o0kq_%gm6dr^tn5x#a*4yu0v7wq!p9e8c")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Educa <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "educa")
	v.SetDefault("database.user", "educa")
	v.SetDefault("database.password", "educa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.inMemory", false)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.keyPrefix", "educa:")
	v.SetDefault("cache.listingTTL", 15*time.Minute)
	v.SetDefault("cache.lruSize", 512)

	v.SetDefault("storage.mediaDir", "media")
	v.SetDefault("storage.mediaURL", "/media/")
	v.SetDefault("storage.gcsBucket", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("debug", false)
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		Env:              env,
		Build:            v.GetString("build"),
		RollbarToken:     v.GetString("rollbarToken"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
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
			InMemory:      v.GetBool("database.inMemory"),
		},
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Cache: CacheConfig{
			RedisAddr:  v.GetString("cache.redisAddr"),
			KeyPrefix:  v.GetString("cache.keyPrefix"),
			ListingTTL: v.GetDuration("cache.listingTTL"),
			LRUSize:    v.GetInt("cache.lruSize"),
		},
		Storage: StorageConfig{
			MediaDir:  v.GetString("storage.mediaDir"),
			MediaURL:  v.GetString("storage.mediaURL"),
			GCSBucket: v.GetString("storage.gcsBucket"),
		},
	}
}
