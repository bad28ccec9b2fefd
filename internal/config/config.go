// Package config loads dashboard settings from flags, environment and an
// optional config.yml.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/storskegg/aranet-dash/internal/logger"
)

// Transport names.
const (
	TransportBLE    = "ble"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

const envPrefix = "ARANET_DASH"

// Config is the resolved configuration.
type Config struct {
	Address    string
	Transport  string
	SensorName string
	BaudRate   int

	Refresh      time.Duration
	Poll         time.Duration
	ReconnectMax time.Duration
	IOTimeout    time.Duration
	ScanTimeout  time.Duration
	QueueSize    int

	LogLevel string
	LogFile  string

	StorePath     string
	HistoryWindow time.Duration
	HistoryLimit  int

	Influx Influx

	GPSPort   string
	Latitude  float64
	Longitude float64

	ExportDir string
	Sound     bool
}

// Influx holds the optional InfluxDB sink settings. An empty URL disables it.
type Influx struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// HasLocation reports whether a static sensor location was configured.
func (c Config) HasLocation() bool {
	return c.Latitude != 0 || c.Longitude != 0
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("address", "", "Sensor address: BLE MAC/UUID or serial port. Empty searches by name.")
	fs.String("transport", TransportBLE, "Sensor transport: ble, serial or sim")
	fs.String("sensor-name", "Aranet4", "Name used to discover the sensor when no address is given")
	fs.Int("baud", 115200, "Baud rate for the serial transport")
	fs.Duration("refresh", 120*time.Second, "Interval between scheduled sensor refreshes")
	fs.Duration("poll", 3*time.Second, "Keyboard poll timeout, which is also the redraw cadence")
	fs.Duration("reconnect-max", 30*time.Second, "Upper bound for the delay between reconnect attempts")
	fs.Duration("io-timeout", 20*time.Second, "Timeout for a single sensor operation")
	fs.Duration("scan-timeout", 15*time.Second, "How long BLE discovery scans for the sensor")
	fs.Int("queue-size", 100, "Capacity of the command queue")
	fs.String("log-level", logger.InfoLevel, "Log level: debug, info, warn, error")
	fs.String("log-file", "aranet-dash.log", "File receiving log output")
	fs.String("store", "", "SQLite file recording readings (empty disables)")
	fs.Duration("history-window", 8*time.Hour, "Look-back window served from the reading store")
	fs.Int("history-limit", 500, "Maximum samples served from the reading store")
	fs.String("influx-url", "", "InfluxDB URL (empty disables)")
	fs.String("influx-token", "", "InfluxDB token")
	fs.String("influx-org", "", "InfluxDB organization")
	fs.String("influx-bucket", "", "InfluxDB bucket")
	fs.String("influx-measurement", "environment", "InfluxDB measurement name")
	fs.String("gps", "", "GPS/GNSS serial port used to tag the sensor location")
	fs.Float64("lat", 0, "Static sensor latitude")
	fs.Float64("lon", 0, "Static sensor longitude")
	fs.String("export-dir", ".", "Directory receiving exports")
	fs.Bool("sound", true, "Play sounds on connection changes")
	fs.String("config", "", "Path to a config file")
	return fs
}

// flag name -> config key
var keys = map[string]string{
	"address":            "address",
	"transport":          "transport",
	"sensor-name":        "sensor.name",
	"baud":               "serial.baud",
	"refresh":            "refresh",
	"poll":               "poll",
	"reconnect-max":      "reconnect-max",
	"io-timeout":         "io-timeout",
	"scan-timeout":       "scan-timeout",
	"queue-size":         "queue-size",
	"log-level":          "log.level",
	"log-file":           "log.file",
	"store":              "store.path",
	"history-window":     "history.window",
	"history-limit":      "history.limit",
	"influx-url":         "influx.url",
	"influx-token":       "influx.token",
	"influx-org":         "influx.org",
	"influx-bucket":      "influx.bucket",
	"influx-measurement": "influx.measurement",
	"gps":                "gps.port",
	"lat":                "location.lat",
	"lon":                "location.lon",
	"export-dir":         "export.dir",
	"sound":              "sound",
}

// Load parses args (without the program name) and merges them over the
// environment, the config file and the defaults.
func Load(name string, args []string) (Config, error) {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	for flagName, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return Config{}, errors.Wrapf(err, "bind flag %s", flagName)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Address:       v.GetString("address"),
		Transport:     strings.ToLower(v.GetString("transport")),
		SensorName:    v.GetString("sensor.name"),
		BaudRate:      v.GetInt("serial.baud"),
		Refresh:       v.GetDuration("refresh"),
		Poll:          v.GetDuration("poll"),
		ReconnectMax:  v.GetDuration("reconnect-max"),
		IOTimeout:     v.GetDuration("io-timeout"),
		ScanTimeout:   v.GetDuration("scan-timeout"),
		QueueSize:     v.GetInt("queue-size"),
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
		StorePath:     v.GetString("store.path"),
		HistoryWindow: v.GetDuration("history.window"),
		HistoryLimit:  v.GetInt("history.limit"),
		Influx: Influx{
			URL:         v.GetString("influx.url"),
			Token:       v.GetString("influx.token"),
			Org:         v.GetString("influx.org"),
			Bucket:      v.GetString("influx.bucket"),
			Measurement: v.GetString("influx.measurement"),
		},
		GPSPort:   v.GetString("gps.port"),
		Latitude:  v.GetFloat64("location.lat"),
		Longitude: v.GetFloat64("location.lon"),
		ExportDir: v.GetString("export.dir"),
		Sound:     v.GetBool("sound"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readConfigFile reads --config when given, otherwise an optional config.yml
// from the working directory or ~/.config/aranet-dash.
func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		return errors.Wrapf(v.ReadInConfig(), "read config %s", path)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "aranet-dash"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Validate rejects settings the dashboard cannot run with.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportBLE, TransportSerial, TransportSim:
	default:
		return errors.Errorf("unknown transport %q", c.Transport)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"refresh", c.Refresh},
		{"poll", c.Poll},
		{"reconnect-max", c.ReconnectMax},
		{"io-timeout", c.IOTimeout},
		{"scan-timeout", c.ScanTimeout},
		{"history-window", c.HistoryWindow},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return errors.Errorf("%s must be positive, got %v", d.name, d.d)
		}
	}

	if c.QueueSize <= 0 {
		return errors.Errorf("queue-size must be positive, got %d", c.QueueSize)
	}
	if c.HistoryLimit <= 0 {
		return errors.Errorf("history-limit must be positive, got %d", c.HistoryLimit)
	}
	if c.Influx.URL != "" && c.Influx.Bucket == "" {
		return errors.New("influx-bucket is required when influx-url is set")
	}
	return nil
}
