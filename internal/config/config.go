package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Drivers de armazenamento suportados.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port              int
	StorageDriver     string
	DBDSN             string
	RedisURL          string
	DirectorySeed     string
	DirectoryCacheTTL time.Duration
	JWTSecret         string
	JWTAccessTTL      time.Duration
	AllowOrigins      []string
	RateLimitPublic   RateLimitConfig
	RateLimitAuth     RateLimitConfig
	Municipio         MunicipioConfig
	Kafka             KafkaConfig
	Tracing           TracingConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// MunicipioConfig identifica o município atendido.
type MunicipioConfig struct {
	Cidade string
	UF     string
}

// KafkaConfig habilita a publicação de eventos quando Brokers não é vazio.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TracingConfig habilita o OTLP quando Endpoint não é vazio.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", StoragePostgres)))
	switch cfg.StorageDriver {
	case StoragePostgres:
		cfg.DBDSN = getEnv("DB_DSN", "")
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN obrigatório")
		}
	case StorageMemory:
		cfg.DirectorySeed = strings.TrimSpace(getEnv("DIRECTORY_SEED", ""))
	default:
		return nil, errors.New("STORAGE_DRIVER deve ser postgres ou memory")
	}

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cacheTTL, err := parseDurationEnv("DIRECTORY_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.DirectoryCacheTTL = cacheTTL

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	public, err := parseRateLimit("RATE_LIMIT_PUBLIC", RateLimitConfig{RequestsPerSecond: 10, Burst: 20})
	if err != nil {
		return nil, err
	}
	cfg.RateLimitPublic = public

	authed, err := parseRateLimit("RATE_LIMIT_AUTH", RateLimitConfig{RequestsPerSecond: 10, Burst: 40})
	if err != nil {
		return nil, err
	}
	cfg.RateLimitAuth = authed

	cfg.Municipio = MunicipioConfig{
		Cidade: strings.TrimSpace(getEnv("MUNICIPIO_CIDADE", "Vilhena")),
		UF:     strings.ToUpper(strings.TrimSpace(getEnv("MUNICIPIO_UF", "RO"))),
	}
	if len(cfg.Municipio.UF) != 2 {
		return nil, errors.New("MUNICIPIO_UF deve ter 2 letras")
	}

	cfg.Kafka = KafkaConfig{
		Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
		Topic:   strings.TrimSpace(getEnv("KAFKA_TOPIC", "demandas.eventos")),
	}

	cfg.Tracing = TracingConfig{
		Endpoint:    strings.TrimSpace(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		ServiceName: strings.TrimSpace(getEnv("OTEL_SERVICE_NAME", "servicos-publicos")),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

// parseRateLimit lê "<rps>:<burst>", ex.: RATE_LIMIT_PUBLIC=5:10.
func parseRateLimit(key string, def RateLimitConfig) (RateLimitConfig, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	rps, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || rps <= 0 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	burst, err := strconv.Atoi(parts[1])
	if err != nil || burst <= 0 {
		return RateLimitConfig{}, errors.New(key + " inválido")
	}
	return RateLimitConfig{RequestsPerSecond: rps, Burst: burst}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
