// Package config holds the lvimport settings. Values come from command line
// flags, LVIMPORT_* environment variables and an optional TOML file, in that
// priority order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lvimport/internal/docstore"
	"lvimport/internal/lv"
)

// EnvPrefix is prepended to environment variable names, e.g. LVIMPORT_BATCH_SIZE.
const EnvPrefix = "LVIMPORT"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePebble   = "pebble"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	StoreKafka    = "kafka"
)

// Sink modes for the changelog and the manifest.
const (
	SinkNone  = "none"
	SinkFile  = "file"
	SinkKafka = "kafka"
	SinkBoth  = "both"
)

type Config struct {
	ConfigFile string

	Input        string
	Collection   string
	DatasetName  string
	BatchSize    int
	MaxTokens    int
	Workers      int
	BatchTimeout time.Duration
	OnInvalid    string

	Store       string // memory|pebble|badger|postgres|kafka
	PebbleDir   string
	BadgerDir   string
	PostgresDSN string

	KafkaBootstrap string
	KafkaTopic     string
	KafkaTxID      string

	ChangelogSink  string // none|file|kafka|both
	ChangelogDir   string
	TopicChangelog string
	ManifestSink   string // none|file|kafka|both
	ManifestSource string // file|kafka
	ManifestDir    string
	TopicManifest  string
	Resume         bool

	ExportDir   string
	MetricsAddr string
	LogLevel    string
}

// Flags registers every option on fs with its default. Parsed values land in c.
func (c *Config) Flags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigFile, "config", "c", "", "TOML configuration file")

	fs.StringVarP(&c.Input, "input", "i", "lv_positions.json", "JSON file with LV positions")
	fs.StringVar(&c.Collection, "collection", "lv_positionen", "target collection")
	fs.StringVar(&c.DatasetName, "dataset-name", lv.DefaultDataset, "lv_name stamped on every document")
	fs.IntVar(&c.BatchSize, "batch-size", docstore.MaxBatchOps, "operations per atomic batch")
	fs.IntVar(&c.MaxTokens, "max-tokens", lv.DefaultMaxTokens, "maximum suchwoerter per document")
	fs.IntVar(&c.Workers, "workers", 4, "goroutines used to map records")
	fs.DurationVar(&c.BatchTimeout, "batch-timeout", 30*time.Second, "deadline per batch commit, 0 disables")
	fs.StringVar(&c.OnInvalid, "on-invalid", string(lv.PolicyAbort), "invalid records: abort|skip")

	fs.StringVar(&c.Store, "store", StoreMemory, "document store: memory|pebble|badger|postgres|kafka")
	fs.StringVar(&c.PebbleDir, "pebble-dir", "./data/pebble", "pebble data directory")
	fs.StringVar(&c.BadgerDir, "badger-dir", "./data/badger", "badger data directory")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", "", "postgres connection string")

	fs.StringVar(&c.KafkaBootstrap, "kafka-bootstrap", "", "kafka bootstrap servers, e.g. localhost:9092")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "lv.documents", "kafka topic for documents (compacted)")
	fs.StringVar(&c.KafkaTxID, "kafka-tx-id", "lvimport", "transactional id for the document producer")

	fs.StringVar(&c.ChangelogSink, "changelog-sink", SinkFile, "changelog sink: none|file|kafka|both")
	fs.StringVar(&c.ChangelogDir, "changelog-dir", "./changelog", "changelog directory")
	fs.StringVar(&c.TopicChangelog, "topic-changelog", "lv.import-changelog", "kafka topic for the changelog")
	fs.StringVar(&c.ManifestSink, "manifest-sink", SinkFile, "manifest sink: none|file|kafka|both")
	fs.StringVar(&c.ManifestSource, "manifest-source", SinkFile, "manifest source for resume: file|kafka")
	fs.StringVar(&c.ManifestDir, "manifest-dir", "./manifests", "manifest directory")
	fs.StringVar(&c.TopicManifest, "topic-manifest", "lv.import-manifest", "kafka topic for the manifest (compacted)")
	fs.BoolVar(&c.Resume, "resume", false, "continue the last interrupted run of the same input")

	fs.StringVar(&c.ExportDir, "export-dir", "", "export the collection here after the import")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	fs.StringVar(&c.LogLevel, "log-level", "info", "error|warn|info|debug")
}

// Load applies environment variables and the config file named by the
// "config" flag to every flag of flags that was not set on the command line.
func Load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}

// Validate normalizes c and reports the first inconsistent setting.
func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case "":
		c.Store = StoreMemory
	case StoreMemory, StorePebble, StoreBadger, StorePostgres, StoreKafka:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.BatchSize <= 0 || c.BatchSize > docstore.MaxBatchOps {
		return fmt.Errorf("batch-size must be in 1..%d, got %d", docstore.MaxBatchOps, c.BatchSize)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = lv.DefaultMaxTokens
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch-timeout must not be negative")
	}
	if _, err := lv.ParsePolicy(c.OnInvalid); err != nil {
		return err
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	for name, sink := range map[string]*string{"changelog-sink": &c.ChangelogSink, "manifest-sink": &c.ManifestSink} {
		switch *sink {
		case "":
			*sink = SinkNone
		case SinkNone, SinkFile, SinkKafka, SinkBoth:
		default:
			return fmt.Errorf("unknown %s %q", name, *sink)
		}
	}
	switch c.ManifestSource {
	case "":
		c.ManifestSource = SinkFile
	case SinkFile, SinkKafka:
	default:
		return fmt.Errorf("unknown manifest-source %q", c.ManifestSource)
	}

	switch {
	case c.Store == StorePostgres && c.PostgresDSN == "":
		return fmt.Errorf("store postgres needs postgres-dsn")
	case c.Store == StoreKafka && c.KafkaBootstrap == "":
		return fmt.Errorf("store kafka needs kafka-bootstrap")
	case c.UsesKafkaSinks() && c.KafkaBootstrap == "":
		return fmt.Errorf("kafka changelog or manifest needs kafka-bootstrap")
	}
	return nil
}

// Policy returns the parsed on-invalid setting. Call Validate first.
func (c *Config) Policy() lv.Policy {
	p, _ := lv.ParsePolicy(c.OnInvalid)
	return p
}

// UsesKafkaSinks reports whether any progress sink or source talks to Kafka.
func (c *Config) UsesKafkaSinks() bool {
	return c.ChangelogSink == SinkKafka || c.ChangelogSink == SinkBoth ||
		c.ManifestSink == SinkKafka || c.ManifestSink == SinkBoth ||
		c.ManifestSource == SinkKafka
}
