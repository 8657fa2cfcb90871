package config

// ApiConfig is the root configuration for the API process. The Database and
// Redis sections are copied into the database and cache packages' Config
// structs at startup (see internal/bootstrap); the other sections are read
// directly.
type ApiConfig struct {
	Database struct {
		Host            string `toml:"host" env:"CRYPTOPAY_DB_HOST"`
		Port            string `toml:"port" env:"CRYPTOPAY_DB_PORT" env-default:"5432"`
		User            string `toml:"user" env:"CRYPTOPAY_DB_USER"`
		Password        string `toml:"password" env:"CRYPTOPAY_DB_PASSWORD"`
		DB              string `toml:"db" env:"CRYPTOPAY_DB_NAME"`
		SslMode         string `toml:"ssl_mode" env:"CRYPTOPAY_DB_SSL_MODE" env-default:"disable"`
		MaxConns        int    `toml:"max_conns" env:"CRYPTOPAY_DB_MAX_CONNS" env-default:"25"`
		MinConns        int    `toml:"min_conns" env:"CRYPTOPAY_DB_MIN_CONNS" env-default:"5"`
		MaxConnLifetime int    `toml:"max_conn_lifetime" env:"CRYPTOPAY_DB_MAX_CONN_LIFETIME" env-default:"5"`
		MaxConnIdleTime int    `toml:"max_conn_idle_time" env:"CRYPTOPAY_DB_MAX_CONN_IDLE_TIME" env-default:"1"`
	} `toml:"database"`

	Redis struct {
		Host     string `toml:"host" env:"CRYPTOPAY_REDIS_HOST"`
		Port     string `toml:"port" env:"CRYPTOPAY_REDIS_PORT" env-default:"6379"`
		Password string `toml:"password" env:"CRYPTOPAY_REDIS_PASSWORD"`
		DB       int    `toml:"db" env:"CRYPTOPAY_REDIS_DB" env-default:"0"`
	} `toml:"redis"`

	Wallet struct {
		// KeyPassword derives the AES key used to decrypt every chain's
		// signing-key blob. Must be at least 32 characters.
		KeyPassword string `toml:"key_password" env:"CRYPTOPAY_WALLET_KEY_PASSWORD"`
	} `toml:"wallet"`

	PaymentGateway struct {
		ServerKey   string `toml:"server_key" env:"CRYPTOPAY_GATEWAY_SERVER_KEY"`
		Environment string `toml:"environment" env:"CRYPTOPAY_GATEWAY_ENV" env-default:"sandbox"`
		BaseURL     string `toml:"base_url" env:"CRYPTOPAY_GATEWAY_BASE_URL"`
	} `toml:"payment_gateway"`

	Pricing struct {
		Provider             string  `toml:"provider" env:"CRYPTOPAY_PRICING_PROVIDER" env-default:"coingecko"`
		StreamURL            string  `toml:"stream_url" env:"CRYPTOPAY_PRICING_STREAM_URL"`
		DefaultMarkupPercent float64 `toml:"default_markup_percent" env:"CRYPTOPAY_DEFAULT_MARKUP_PERCENT" env-default:"5"`
		DefaultUsdIdrRate    float64 `toml:"default_usd_idr_rate" env:"CRYPTOPAY_DEFAULT_USD_IDR_RATE" env-default:"15800"`
		FxEndpoint           string  `toml:"fx_endpoint" env:"CRYPTOPAY_FX_ENDPOINT"`
	} `toml:"pricing"`

	Referral struct {
		ValidationThreshold int     `toml:"validation_threshold" env:"CRYPTOPAY_REFERRAL_THRESHOLD" env-default:"1"`
		RewardValueIDR      int64   `toml:"reward_value_idr" env:"CRYPTOPAY_REFERRAL_REWARD_IDR" env-default:"50000"`
		RewardExpiryDays    int     `toml:"reward_expiry_days" env:"CRYPTOPAY_REFERRAL_REWARD_EXPIRY_DAYS" env-default:"90"`
		MilestoneEvery      int     `toml:"milestone_every" env:"CRYPTOPAY_REFERRAL_MILESTONE_EVERY" env-default:"20"`
		MilestoneValueIDR   int64   `toml:"milestone_value_idr" env:"CRYPTOPAY_REFERRAL_MILESTONE_IDR" env-default:"200000"`
		MilestoneExpiryDays int     `toml:"milestone_expiry_days" env:"CRYPTOPAY_REFERRAL_MILESTONE_EXPIRY_DAYS" env-default:"30"`
	} `toml:"referral"`

	CORS struct {
		AllowedOrigins []string `toml:"allowed_origins" env:"CRYPTOPAY_CORS_ALLOWED_ORIGINS" env-separator:","`
	} `toml:"cors"`

	SMTP struct {
		Host     string `toml:"host" env:"CRYPTOPAY_SMTP_HOST"`
		Port     string `toml:"port" env:"CRYPTOPAY_SMTP_PORT" env-default:"587"`
		User     string `toml:"user" env:"CRYPTOPAY_SMTP_USER"`
		Password string `toml:"password" env:"CRYPTOPAY_SMTP_PASSWORD"`
		From     string `toml:"from" env:"CRYPTOPAY_SMTP_FROM"`
	} `toml:"smtp"`

	Monitoring struct {
		DSN string `toml:"dsn" env:"CRYPTOPAY_MONITORING_DSN"`
	} `toml:"monitoring"`
}

// ChainConfig describes one configured chain. Chains are loaded from a
// separate TOML array-of-tables (not env-driven, since the set of chains is
// deployment-specific) and seeded into the database at startup if absent.
type ChainConfig struct {
	Slug              string `toml:"slug"`
	Type              string `toml:"type"` // EVM | SOLANA | SUI
	RpcURL            string `toml:"rpc_url"`
	ExplorerURL       string `toml:"explorer_url"`
	ChainID           int64  `toml:"chain_id"`
	NativeSymbol      string `toml:"native_symbol"`
	Decimals          int32  `toml:"decimals"`
	Confirmations     int    `toml:"confirmations"`
	SigningKeyEnvName string `toml:"signing_key_env_name"` // resolved as ENV:<name> into the encrypted blob
	WalletAddress     string `toml:"wallet_address"`       // SUI only: no ecosystem SDK derives this from the seed here
	GasBumpPercent    int    `toml:"gas_bump_percent"`
}

type ChainsConfig struct {
	Chains []ChainConfig `toml:"chain"`
}
