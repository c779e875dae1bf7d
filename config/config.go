// Package config defines the YAML configuration model that wires a Postgres
// log sink: connection, destination table, the ordered column registry, the
// write strategy, retention, batching, and an optional metrics backend.
//
// Loading follows three steps: read the raw file, sanitize it (strip a UTF-8
// BOM, replace tabs — both show up in hand-edited configs), then unmarshal
// and validate. The package only consumes the resulting structure; callers
// construct the sink via SinkOptions and the front-end via BatchOptions.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"pgsink/batch"
	"pgsink/columns"
	"pgsink/sink"
)

// Duration is a time.Duration that unmarshals from YAML strings like "36h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ColumnSpec declares one destination column and which writer backs it.
type ColumnSpec struct {
	// Name is the destination column name.
	Name string `yaml:"name"`

	// Kind selects the writer: "timestamp", "level", "message_template",
	// "rendered_message", "exception", "property", "properties", "raw".
	Kind string `yaml:"kind"`

	// Type is the SQL type for kind "raw".
	Type string `yaml:"type"`

	// Property names the event property for kind "property".
	Property string `yaml:"property"`

	// AsOrdinal stores the level as its numeric rank (kind "level" only).
	AsOrdinal bool `yaml:"as_ordinal"`

	// SkipOnInsert keeps the column out of INSERT/COPY (still in DDL).
	SkipOnInsert bool `yaml:"skip_on_insert"`

	// Order is the optional explicit DDL ordinal. Ordering applies only when
	// every column declares one.
	Order *int `yaml:"order"`
}

// BatchSpec configures the buffering front-end.
type BatchSpec struct {
	BufferSize       int      `yaml:"buffer_size"`
	MaxBatchSize     int      `yaml:"max_batch_size"`
	FlushInterval    Duration `yaml:"flush_interval"`
	MaxRetries       uint64   `yaml:"max_retries"`
	RetryInitialWait Duration `yaml:"retry_initial_wait"`
	DropOnFull       bool     `yaml:"drop_on_full"`
}

// MetricsSpec selects an optional metrics backend.
type MetricsSpec struct {
	// Kind is "none" (default), "pushgateway", or "datadog".
	Kind string `yaml:"kind"`

	// GatewayURL and Job apply to kind "pushgateway".
	GatewayURL string `yaml:"gateway_url"`
	Job        string `yaml:"job"`

	// Addr and Namespace apply to kind "datadog".
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Config is the top-level document.
type Config struct {
	DSN              string       `yaml:"dsn"`
	Schema           string       `yaml:"schema"`
	Table            string       `yaml:"table"`
	AutoCreateSchema bool         `yaml:"auto_create_schema"`
	AutoCreateTable  bool         `yaml:"auto_create_table"`
	UseCopy          bool         `yaml:"use_copy"`
	Retention        Duration     `yaml:"retention"`
	Locale           string       `yaml:"locale"`
	TimestampLayout  string       `yaml:"timestamp_layout"`
	Columns          []ColumnSpec `yaml:"columns"`
	Batch            BatchSpec    `yaml:"batch"`
	Metrics          MetricsSpec  `yaml:"metrics"`
}

// Load reads, sanitizes, parses, and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(sanitize(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals and validates config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sanitize strips a UTF-8 BOM and replaces tabs with spaces.
func sanitize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
}

// Validate checks required fields and column specs.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn must not be empty")
	}
	if c.Table == "" {
		return fmt.Errorf("table must not be empty")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("at least one column required")
	}
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("column name must not be empty")
		}
		if _, err := writerFor(col); err != nil {
			return err
		}
	}
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("locale %q: %w", c.Locale, err)
		}
	}
	return nil
}

// writerFor maps a ColumnSpec to its column writer.
func writerFor(spec ColumnSpec) (columns.Writer, error) {
	switch spec.Kind {
	case "timestamp":
		return columns.TimestampWriter{}, nil
	case "level":
		return columns.LevelWriter{AsOrdinal: spec.AsOrdinal}, nil
	case "message_template":
		return columns.MessageTemplateWriter{}, nil
	case "rendered_message", "message":
		return columns.RenderedMessageWriter{}, nil
	case "exception":
		return columns.ExceptionWriter{}, nil
	case "property":
		if spec.Property == "" {
			return nil, fmt.Errorf("column %q: kind property requires a property name", spec.Name)
		}
		return columns.PropertyWriter{Name: spec.Property}, nil
	case "properties":
		return columns.PropertiesWriter{}, nil
	case "raw":
		if spec.Type == "" {
			return nil, fmt.Errorf("column %q: kind raw requires a SQL type", spec.Name)
		}
		// No extractor from config; a raw column always writes NULL and
		// relies on server defaults unless it is skip_on_insert.
		return columns.RawWriter{Type: spec.Type}, nil
	default:
		return nil, fmt.Errorf("column %q: unknown kind %q", spec.Name, spec.Kind)
	}
}

// SinkOptions builds the sink configuration from the document.
func (c *Config) SinkOptions(logger *zap.Logger) (sink.Options, error) {
	cols := make(sink.ColumnOptions, 0, len(c.Columns))
	for _, spec := range c.Columns {
		w, err := writerFor(spec)
		if err != nil {
			return sink.Options{}, err
		}
		cols = append(cols, sink.Column{
			Name:         spec.Name,
			Writer:       w,
			SkipOnInsert: spec.SkipOnInsert,
			Order:        spec.Order,
		})
	}

	tag := language.English
	if c.Locale != "" {
		parsed, err := language.Parse(c.Locale)
		if err != nil {
			return sink.Options{}, fmt.Errorf("locale %q: %w", c.Locale, err)
		}
		tag = parsed
	}

	return sink.Options{
		ConnectionString:     c.DSN,
		SchemaName:           c.Schema,
		TableName:            c.Table,
		Columns:              cols,
		NeedAutoCreateSchema: c.AutoCreateSchema,
		NeedAutoCreateTable:  c.AutoCreateTable,
		UseCopy:              c.UseCopy,
		RetentionTime:        time.Duration(c.Retention),
		Format:               columns.NewFormat(tag, c.TimestampLayout),
		Logger:               logger,
	}, nil
}

// BatchOptions builds the front-end configuration from the document.
func (c *Config) BatchOptions(logger *zap.Logger) batch.Options {
	return batch.Options{
		Name:             c.Table,
		BufferSize:       c.Batch.BufferSize,
		MaxBatchSize:     c.Batch.MaxBatchSize,
		FlushInterval:    time.Duration(c.Batch.FlushInterval),
		MaxRetries:       c.Batch.MaxRetries,
		RetryInitialWait: time.Duration(c.Batch.RetryInitialWait),
		DropOnFull:       c.Batch.DropOnFull,
		Logger:           logger,
	}
}
