package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/servicos-publicos/internal/auth"
	"github.com/gestaozabele/servicos-publicos/internal/db"
	"github.com/gestaozabele/servicos-publicos/internal/demanda"
	"github.com/gestaozabele/servicos-publicos/internal/directory"
	"github.com/gestaozabele/servicos-publicos/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	// token não precisa de banco.
	if cmd == "token" {
		if err := runToken(args); err != nil {
			log.Fatal().Err(err).Msg("falha ao gerar token")
		}
		return
	}

	pool, err := connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	switch cmd {
	case "migrate":
		err = runMigrate(ctx, pool)
	case "tipos":
		err = runTipos(ctx, directory.NewPostgresDirectory(pool))
	case "set-tipo":
		pg := directory.NewPostgresDirectory(pool)
		var cached *directory.Cached
		cached, err = tipoCache(pg)
		if err == nil {
			err = runSetTipo(ctx, pg, cached, args)
		}
	case "delete":
		err = runDelete(ctx, demanda.NewPostgresStore(pool), args)
	default:
		usage()
		pool.Close()
		os.Exit(1)
	}
	if err != nil {
		pool.Close()
		log.Fatal().Err(err).Str("cmd", cmd).Msg("comando falhou")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "demandas CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  demandas migrate")
	fmt.Fprintln(os.Stderr, "  demandas tipos")
	fmt.Fprintln(os.Stderr, "  demandas set-tipo --tipo Iluminação --secretaria <uuid>")
	fmt.Fprintln(os.Stderr, "  demandas delete --id <uuid>")
	fmt.Fprintln(os.Stderr, "  demandas token --sub <uuid> --roles SECRETARIA,OPERADOR [--aud backoffice] [--ttl 1h]")
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		return nil, errors.New("defina DB_DSN ou DATABASE_URL")
	}
	return db.NewPool(ctx, dsn)
}

func runMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	applied, err := db.Migrate(ctx, pool, log.Logger)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("banco já está atualizado")
		return nil
	}
	for _, name := range applied {
		fmt.Println("aplicada:", name)
	}
	return nil
}

func runTipos(ctx context.Context, dir *directory.PostgresDirectory) error {
	tipos, err := dir.ListTipos(ctx)
	if err != nil {
		return err
	}
	if len(tipos) == 0 {
		fmt.Println("nenhum tipo associado a secretarias")
		return nil
	}
	encoded, _ := json.MarshalIndent(tipos, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

// tipoCache abre o mesmo cache Redis da API, quando REDIS_URL estiver definida,
// para que set-tipo descarte o mapeamento antigo.
func tipoCache(dir directory.Directory) (*directory.Cached, error) {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		return directory.NewCached(dir, nil, 0), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URL inválida: %w", err)
	}
	return directory.NewCached(dir, redis.NewClient(opts), 0), nil
}

func runSetTipo(ctx context.Context, dir *directory.PostgresDirectory, cache *directory.Cached, args []string) error {
	fs := flag.NewFlagSet("set-tipo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		tipoRaw       = fs.String("tipo", "", "tipo de demanda (ex.: Iluminação)")
		secretariaRaw = fs.String("secretaria", "", "uuid da secretaria responsável")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := util.RequireString(*tipoRaw, "tipo"); err != nil {
		return err
	}
	if err := util.RequireString(*secretariaRaw, "secretaria"); err != nil {
		return err
	}

	tipo, ok := demanda.ParseTipo(*tipoRaw)
	if !ok {
		return fmt.Errorf("tipo desconhecido %q", *tipoRaw)
	}
	secretariaID, err := uuid.Parse(strings.TrimSpace(*secretariaRaw))
	if err != nil {
		return errors.New("secretaria deve ser um uuid")
	}

	if err := dir.SetTipo(ctx, string(tipo), secretariaID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("secretaria %s não encontrada", secretariaID)
		}
		return err
	}
	if err := cache.InvalidateTipo(ctx, string(tipo)); err != nil {
		log.Warn().Err(err).Str("tipo", string(tipo)).Msg("cache do tipo não foi invalidado; vale após o TTL")
	}
	fmt.Printf("%s -> %s\n", tipo, secretariaID)
	return nil
}

func runDelete(ctx context.Context, store demanda.Store, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("id", "", "uuid da demanda")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := util.RequireString(*id, "id"); err != nil {
		return err
	}

	if err := store.Delete(ctx, strings.TrimSpace(*id)); err != nil {
		if errors.Is(err, demanda.ErrNotFound) {
			return fmt.Errorf("demanda %s não encontrada", *id)
		}
		return err
	}
	log.Warn().Str("demanda_id", *id).Msg("demanda removida via CLI")
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		sub   = fs.String("sub", "", "subject (uuid do usuário)")
		roles = fs.String("roles", "", "papéis separados por vírgula")
		aud   = fs.String("aud", auth.AudienceBackoffice, "audience do token")
		ttl   = fs.Duration("ttl", time.Hour, "validade do token")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := util.RequireString(*sub, "sub"); err != nil {
		return err
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if len(secret) < 32 {
		return errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	token, _, err := auth.NewJWTManager(secret, *ttl).GenerateAccessToken(*sub, *aud, strings.Split(*roles, ","))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
