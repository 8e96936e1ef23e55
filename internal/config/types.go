package config

// Config 是 twquant 的主配置載體。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Data     DataConfig     `mapstructure:"data"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Backtest BacktestConfig `mapstructure:"backtest"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

// DataConfig 指定日線資料庫的存放位置。
type DataConfig struct {
	Root string `mapstructure:"root"`
}

// RulesConfig 指定規則庫與預設規則檔。
type RulesConfig struct {
	DBPath   string `mapstructure:"db_path"`
	SeedPath string `mapstructure:"seed_path"`
}

// BacktestConfig 控制模擬交易的費用模型與預設股數。
// 費率預設為台股現股：手續費 0.1425%（最低 20 元）、證交稅 0.3%。
type BacktestConfig struct {
	DefaultShares int     `mapstructure:"default_shares"`
	FeeRate       float64 `mapstructure:"fee_rate"`
	MinFee        float64 `mapstructure:"min_fee"`
	TaxRate       float64 `mapstructure:"tax_rate"`
}
