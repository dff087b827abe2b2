package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

type Config struct {
	CacheDir          string        `mapstructure:"cacheDir"`
	DockerConfig      string        `mapstructure:"dockerConfig"`
	GitLabAuthURL     string        `mapstructure:"gitlabAuthURL"`
	GitLabHosts       []string      `mapstructure:"gitlabHosts"`
	HelperTimeout     time.Duration `mapstructure:"helperTimeout"`
	HTTPTimeout       time.Duration `mapstructure:"httpTimeout"`
	Insecure          bool          `mapstructure:"insecure"`
	LayerWorkers      int           `mapstructure:"layerWorkers"`
	ListenAddress     string        `mapstructure:"listenAddress"`
	MaxLayerSize      int64         `mapstructure:"maxLayerSize"`
	NGCHosts          []string      `mapstructure:"ngcHosts"`
	Platform          string        `mapstructure:"platform"`
	RequestQueue      int           `mapstructure:"requestQueue"`
	Retries           int           `mapstructure:"retries"`
	RetryBackoff      time.Duration `mapstructure:"retryBackoff"`
	UseCache          bool          `mapstructure:"useCache"`
	ContainersToIndex []string      `mapstructure:"containers"`
}

// DefaultCacheDir is where extracted framework definitions are kept between runs
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "evalresolver", "framework")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cacheDir", DefaultCacheDir())
	v.SetDefault("helperTimeout", 10*time.Second)
	v.SetDefault("httpTimeout", 60*time.Second)
	v.SetDefault("layerWorkers", 4)
	v.SetDefault("listenAddress", ":8080")
	v.SetDefault("maxLayerSize", int64(0))
	v.SetDefault("platform", "linux/amd64")
	v.SetDefault("requestQueue", 1)
	v.SetDefault("retries", 2)
	v.SetDefault("retryBackoff", 500*time.Millisecond)
	v.SetDefault("useCache", true)
}

// Defaults returns the configuration used when no config file is available,
// environment variables still apply
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	var config Config
	_ = v.Unmarshal(&config)
	return config
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	setDefaults(viper.GetViper())

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
