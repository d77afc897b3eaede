// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vwap-ema-trader/internal/model"
)

// ErrMissingCredentials 表示券商凭证未配置或仍是占位符
var ErrMissingCredentials = errors.New("broker credentials are missing or still placeholders")

// 占位符凭证，必须替换为真实值 (通过环境变量或 config.yaml)
const (
	PlaceholderClientID    = "YOUR_CLIENT_ID"
	PlaceholderAccessToken = "YOUR_ACCESS_TOKEN"
)

type Config struct {
	Backtest BacktestDefaults `mapstructure:"Backtest"`
	Data     DataConfig       `mapstructure:"Data"`
	Broker   BrokerConfig     `mapstructure:"Broker"`
	Log      LogConfig        `mapstructure:"Log"`
}

// BacktestDefaults 定义了回测参数的默认值 (命令行未指定时使用)
type BacktestDefaults struct {
	Capital        float64
	RiskPercent    float64
	SLPoints       float64
	LotSize        int
	EMALength      int
	LowerInterval  string
	HigherInterval string
	VWAPAnchor     string
	Timezone       string
	Exchange       string
	InstrumentType string
}

// DataConfig 定义了历史数据来源
type DataConfig struct {
	Source         string // simulated | csv | postgres | clickhouse
	CSVDir         string
	PostgresDSN    string
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
	Seed           int64
	StartPrice     float64
}

// BrokerConfig 定义了券商的连接信息，仅实盘路径使用
type BrokerConfig struct {
	Name        string
	ClientID    string
	AccessToken string
	RESTURL     string
}

type LogConfig struct {
	Level string
}

// Validate 检查凭证是否已配置，实盘路径在任何网络操作之前调用
func (b BrokerConfig) Validate() error {
	id := strings.TrimSpace(b.ClientID)
	token := strings.TrimSpace(b.AccessToken)
	if id == "" || id == PlaceholderClientID {
		return fmt.Errorf("%w: set Broker.ClientID (env TRADER_BROKER_CLIENTID)", ErrMissingCredentials)
	}
	if token == "" || token == PlaceholderAccessToken {
		return fmt.Errorf("%w: set Broker.AccessToken (env TRADER_BROKER_ACCESSTOKEN)", ErrMissingCredentials)
	}
	return nil
}

// SetDefaults 注册所有默认值，配置文件缺失时依然可以运行回测
func SetDefaults(v *viper.Viper) {
	v.SetDefault("Backtest.Capital", 100000.0)
	v.SetDefault("Backtest.RiskPercent", 0.8)
	v.SetDefault("Backtest.SLPoints", 50.0)
	v.SetDefault("Backtest.LotSize", 15)
	v.SetDefault("Backtest.EMALength", 25)
	v.SetDefault("Backtest.LowerInterval", "5m")
	v.SetDefault("Backtest.HigherInterval", "15m")
	v.SetDefault("Backtest.VWAPAnchor", string(model.AnchorSession))
	v.SetDefault("Backtest.Timezone", "Asia/Kolkata")
	v.SetDefault("Backtest.Exchange", "NSE")
	v.SetDefault("Backtest.InstrumentType", "EQUITY")

	v.SetDefault("Data.Source", "simulated")
	v.SetDefault("Data.CSVDir", "data")
	v.SetDefault("Data.ClickHouseDB", "backtest")
	v.SetDefault("Data.Seed", 42)
	v.SetDefault("Data.StartPrice", 45000.0)

	v.SetDefault("Broker.Name", "dhan")
	v.SetDefault("Broker.ClientID", PlaceholderClientID)
	v.SetDefault("Broker.AccessToken", PlaceholderAccessToken)
	v.SetDefault("Broker.RESTURL", "https://api.dhan.co")

	v.SetDefault("Log.Level", "info")
}

// LoadConfig 读取并解析配置文件，configFile 为空时在 ./config 下查找 config.yaml
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config") // 文件名是 config
		v.SetConfigType("yaml")   // 文件类型是 yaml
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	// 环境变量覆盖，例如 TRADER_BROKER_ACCESSTOKEN
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// Location 解析配置的时区
func (b BacktestDefaults) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

// Intervals 解析低/高周期
func (b BacktestDefaults) Intervals() (lower, higher time.Duration, err error) {
	lower, err = ParseIntervalDuration(b.LowerInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("lower interval: %w", err)
	}
	higher, err = ParseIntervalDuration(b.HigherInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("higher interval: %w", err)
	}
	return lower, higher, nil
}

// Anchor 解析 VWAP 重置方式
func (b BacktestDefaults) Anchor() (model.VWAPAnchor, error) {
	switch model.VWAPAnchor(strings.ToLower(b.VWAPAnchor)) {
	case model.AnchorSession, "":
		return model.AnchorSession, nil
	case model.AnchorNone:
		return model.AnchorNone, nil
	default:
		return "", fmt.Errorf("unsupported vwap anchor: %q", b.VWAPAnchor)
	}
}
