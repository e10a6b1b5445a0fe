package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache é o subconjunto do cliente redis usado pelo diretório.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cached guarda em cache as consultas de tipo e de operador. Vínculos de
// secretaria passam direto, pois validam o escopo de cada requisição.
// Alterações feitas fora de InvalidateTipo/InvalidateOperator só aparecem
// depois do TTL.
type Cached struct {
	next  Directory
	cache Cache
	ttl   time.Duration
}

// NewCached envolve o diretório. Com cache nil as chamadas vão direto ao next.
func NewCached(next Directory, cache Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{next: next, cache: cache, ttl: ttl}
}

func (c *Cached) SecretariaForTipo(ctx context.Context, tipo string) (string, error) {
	key := tipoKey(tipo)
	if c.cache != nil {
		if val, err := c.cache.Get(ctx, key).Result(); err == nil && val != "" {
			return val, nil
		}
	}

	id, err := c.next.SecretariaForTipo(ctx, tipo)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, id, c.ttl).Err()
	}
	return id, nil
}

func (c *Cached) IsOperator(ctx context.Context, secretariaID, usuarioID string) (bool, error) {
	key := operatorKey(secretariaID, usuarioID)
	if c.cache != nil {
		if val, err := c.cache.Get(ctx, key).Result(); err == nil && val == "1" {
			return true, nil
		}
	}

	ok, err := c.next.IsOperator(ctx, secretariaID, usuarioID)
	if err != nil {
		return false, err
	}

	// só vínculos positivos entram no cache
	if c.cache != nil && ok {
		_ = c.cache.Set(ctx, key, "1", c.ttl).Err()
	}
	return ok, nil
}

func (c *Cached) ListSecretariasByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]SecretariaWithRole, error) {
	return c.next.ListSecretariasByUsuario(ctx, usuarioID)
}

// InvalidateTipo descarta o mapeamento em cache do tipo.
func (c *Cached) InvalidateTipo(ctx context.Context, tipo string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, tipoKey(tipo)).Err()
}

// InvalidateOperator descarta o vínculo de operador em cache, usado quando o
// operador sai da secretaria.
func (c *Cached) InvalidateOperator(ctx context.Context, secretariaID, usuarioID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, operatorKey(secretariaID, usuarioID)).Err()
}

func tipoKey(tipo string) string {
	return fmt.Sprintf("demandas:tipo:%s", tipo)
}

func operatorKey(secretariaID, usuarioID string) string {
	return fmt.Sprintf("demandas:operador:%s:%s", secretariaID, usuarioID)
}
