package domain

// Config holds the complete Talon configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring holds the immutable weight/cap tables for the scoring engine.
	Scoring ScoringConfig `json:"scoring"`

	// ModelPath is the location of the trained classifier bundle.
	ModelPath string `json:"modelPath"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// ScoringConfig is the immutable parameter set for the scoring engine.
// It is passed to the engine at construction; the engine never mutates it.
type ScoringConfig struct {
	// Per-signal impact caps (score points on the 0-1000 scale).
	CommunityTrustCap    int `json:"communityTrustCap"`
	AddressStabilityCap  int `json:"addressStabilityCap"`
	IncomeRhythmCap      int `json:"incomeRhythmCap"`
	SavingsCadenceCap    int `json:"savingsCadenceCap"`
	DevicePersistenceCap int `json:"devicePersistenceCap"`
	ExpenseElasticityCap int `json:"expenseElasticityCap"`
	UtilityStabilityCap  int `json:"utilityStabilityCap"`
	MerchantLoyaltyCap   int `json:"merchantLoyaltyCap"`
	RepaymentVelocityCap int `json:"repaymentVelocityCap"`
	GeoResilienceCap     int `json:"geoResilienceCap"`

	// Composite caps. NetworkCap is deliberately tighter than the sum of its
	// member caps (100+50) to dampen total network-derived influence.
	NetworkCap   int `json:"networkCap"`
	StabilityCap int `json:"stabilityCap"`

	// MaxTotalAdjustment, when positive, clamps the combined network plus
	// stability adjustment before fusion. Zero disables the global clamp and
	// leaves only the per-layer caps in force.
	MaxTotalAdjustment int `json:"maxTotalAdjustment"`

	// StabilityWeights is the fixed weight table for the behavioral
	// composite, keyed by signal name.
	StabilityWeights map[string]float64 `json:"stabilityWeights"`

	// Fusion weights: final = floor(MLWeight*ml + RuleWeight*rule).
	MLWeight   float64 `json:"mlWeight"`
	RuleWeight float64 `json:"ruleWeight"`

	// Risk band thresholds on the fused score.
	HighBandThreshold     int `json:"highBandThreshold"`
	ModerateBandThreshold int `json:"moderateBandThreshold"`

	// Uncertainty model: pct = max(Min, Base - n*PerSignal) for n available
	// behavioral signals.
	BaseUncertaintyPct      float64 `json:"baseUncertaintyPct"`
	UncertaintyPerSignalPct float64 `json:"uncertaintyPerSignalPct"`
	MinUncertaintyPct       float64 `json:"minUncertaintyPct"`
}

// DefaultScoringConfig returns the production scoring parameters.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CommunityTrustCap:    100,
		AddressStabilityCap:  50,
		IncomeRhythmCap:      70,
		SavingsCadenceCap:    50,
		DevicePersistenceCap: 40,
		ExpenseElasticityCap: 40,
		UtilityStabilityCap:  35,
		MerchantLoyaltyCap:   30,
		RepaymentVelocityCap: 50,
		GeoResilienceCap:     40,

		NetworkCap:   120,
		StabilityCap: 150,

		MaxTotalAdjustment: 0, // per-layer caps only

		StabilityWeights: map[string]float64{
			SignalIncomeRhythm:      0.20,
			SignalSavingsCadence:    0.10,
			SignalDevicePersistence: 0.10,
			SignalExpenseElasticity: 0.10,
			SignalUtilityStability:  0.10,
			SignalMerchantLoyalty:   0.10,
			SignalRepaymentVelocity: 0.15,
			SignalGeoResilience:     0.15,
		},

		MLWeight:   0.6,
		RuleWeight: 0.4,

		HighBandThreshold:     700,
		ModerateBandThreshold: 350,

		BaseUncertaintyPct:      25,
		UncertaintyPerSignalPct: 2.5,
		MinUncertaintyPct:       5,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./talon.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring:   DefaultScoringConfig(),
		ModelPath: "./model/credit_model.json",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "talon",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "talon",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
