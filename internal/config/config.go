// Package config loads daemon settings from a YAML file and PLANTKEEPER_*
// environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"plantkeeper/internal/auth"
	"plantkeeper/internal/blob"
	"plantkeeper/internal/core"
	"plantkeeper/internal/infra/blob/s3"
	"plantkeeper/internal/infra/persistence/firestore"
)

// Config is the root of the daemon configuration.
type Config struct {
	Env      string         `yaml:"env" env:"PLANTKEEPER_ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Blob     BlobConfig     `yaml:"blob"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Social   SocialConfig   `yaml:"social"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address         string        `yaml:"address" env:"PLANTKEEPER_HTTP_ADDRESS" env-default:":8080"`
	AllowOrigins    []string      `yaml:"allow_origins" env:"PLANTKEEPER_HTTP_ALLOW_ORIGINS" env-separator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PLANTKEEPER_HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// StorageConfig selects the entity store backend. Collection applies to the
// firestore driver, which takes its project from FirebaseConfig.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"PLANTKEEPER_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" env:"PLANTKEEPER_SQLITE_PATH" env-default:"./plantkeeper.db"`
	PostgresDSN string `yaml:"postgres_dsn" env:"PLANTKEEPER_POSTGRES_DSN"`
	Collection  string `yaml:"firestore_collection" env:"PLANTKEEPER_FIRESTORE_COLLECTION" env-default:"plantkeeper"`
}

// BlobConfig selects where images and local accounts are stored. The memory
// driver loses both on restart.
type BlobConfig struct {
	Driver string    `yaml:"driver" env:"PLANTKEEPER_BLOB_DRIVER" env-default:"fs"`
	FSRoot string    `yaml:"fs_root" env:"PLANTKEEPER_BLOB_FS_ROOT" env-default:"./blobdata"`
	S3     s3.Config `yaml:"s3"`
}

// FirebaseConfig enables Firebase ID-token verification when ProjectID is set.
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id" env:"PLANTKEEPER_FIREBASE_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" env:"PLANTKEEPER_FIREBASE_CREDENTIALS_FILE"`
}

// SocialConfig tunes friend graph behaviour.
type SocialConfig struct {
	StrictFriendship bool `yaml:"strict_friendship" env:"PLANTKEEPER_STRICT_FRIENDSHIP"`
}

// MustLoad reads the file named by -config or CONFIG_PATH, falling back to
// environment variables alone when neither is set.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("cannot read config: " + err.Error())
	}
	return cfg
}

// Load reads path when non-empty and applies PLANTKEEPER_* overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	if f := flag.Lookup("config"); f != nil {
		res = f.Value.String()
	} else {
		flag.StringVar(&res, "config", "", "path to config file")
		flag.Parse()
	}

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}

func (c *Config) setDefaults() {
	if len(c.HTTP.AllowOrigins) == 0 {
		c.HTTP.AllowOrigins = []string{"http://localhost:3000"}
	}
}

// CoreStorage maps the storage section onto the core backend selector.
func (c *Config) CoreStorage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Firestore: firestore.Config{
			ProjectID:       c.Firebase.ProjectID,
			Collection:      c.Storage.Collection,
			CredentialsFile: c.Firebase.CredentialsFile,
		},
	}
}

// BlobStore maps the blob section onto the blob backend selector.
func (c *Config) BlobStore() blob.Config {
	return blob.Config{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// FirebaseAuth reports the Firebase verifier settings and whether they are set.
func (c *Config) FirebaseAuth() (auth.FirebaseConfig, bool) {
	fc := auth.FirebaseConfig{ProjectID: c.Firebase.ProjectID, CredentialsFile: c.Firebase.CredentialsFile}
	return fc, fc.ProjectID != ""
}
