package demanda

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const demandColumns = `id, tipo, status, descricao, endereco, link_imagem, usuarios, resolucao,
        link_imagem_resolucao, motivo_devolucao, motivo_rejeicao, feedback, avaliacao_resolucao,
        cidadao_id, secretaria_id, versao, created_at, updated_at`

// PostgresStore provê acesso à tabela demandas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore cria instância da store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get busca uma demanda específica.
func (s *PostgresStore) Get(ctx context.Context, id string) (Demand, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return Demand{}, ErrNotFound
	}
	query := `SELECT ` + demandColumns + ` FROM demandas WHERE id = $1`
	return scanDemand(s.pool.QueryRow(ctx, query, uid))
}

// Create insere uma nova demanda com versao 1.
func (s *PostgresStore) Create(ctx context.Context, d Demand) (Demand, error) {
	id := uuid.New()
	if d.ID != "" {
		parsed, err := uuid.Parse(d.ID)
		if err != nil {
			return Demand{}, fmt.Errorf("id inválido: %w", err)
		}
		id = parsed
	}
	status := d.Status
	if status == "" {
		status = StatusEmAberto
	}
	query := `
        INSERT INTO demandas (id, tipo, status, descricao, endereco, link_imagem, usuarios, resolucao,
            link_imagem_resolucao, motivo_devolucao, motivo_rejeicao, feedback, avaliacao_resolucao,
            cidadao_id, secretaria_id, versao)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
        RETURNING ` + demandColumns

	row := s.pool.QueryRow(ctx, query,
		id,
		string(d.Tipo),
		string(status),
		d.Descricao,
		d.Endereco,
		nonNil(d.Imagens),
		nonNil(d.Usuarios),
		d.Resolucao,
		nonNil(d.ImagensResolucao),
		d.MotivoDevolucao,
		d.MotivoRejeicao,
		d.Feedback,
		d.AvaliacaoResolucao,
		d.CidadaoID,
		d.SecretariaID,
	)
	return scanDemand(row)
}

// Save grava o novo estado se a versão armazenada ainda for d.Versao.
func (s *PostgresStore) Save(ctx context.Context, d Demand) (Demand, error) {
	uid, err := uuid.Parse(d.ID)
	if err != nil {
		return Demand{}, ErrNotFound
	}
	query := `
        UPDATE demandas SET
            status = $2,
            usuarios = $3,
            resolucao = $4,
            link_imagem_resolucao = $5,
            motivo_devolucao = $6,
            motivo_rejeicao = $7,
            feedback = $8,
            avaliacao_resolucao = $9,
            versao = versao + 1,
            updated_at = now()
        WHERE id = $1 AND versao = $10
        RETURNING ` + demandColumns

	row := s.pool.QueryRow(ctx, query,
		uid,
		string(d.Status),
		nonNil(d.Usuarios),
		d.Resolucao,
		nonNil(d.ImagensResolucao),
		d.MotivoDevolucao,
		d.MotivoRejeicao,
		d.Feedback,
		d.AvaliacaoResolucao,
		d.Versao,
	)
	saved, err := scanDemand(row)
	if errors.Is(err, ErrNotFound) {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM demandas WHERE id = $1)`, uid).Scan(&exists); err != nil {
			return Demand{}, fmt.Errorf("verificar demanda: %w", err)
		}
		if exists {
			return Demand{}, ErrConflict
		}
		return Demand{}, ErrNotFound
	}
	return saved, err
}

// List aplica os filtros da projeção e devolve a página e o total.
func (s *PostgresStore) List(ctx context.Context, q Query) ([]Demand, int, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if q.CidadaoID != "" {
		clauses = append(clauses, fmt.Sprintf("cidadao_id = $%d", idx))
		args = append(args, q.CidadaoID)
		idx++
	}
	if q.SecretariaID != "" {
		clauses = append(clauses, fmt.Sprintf("secretaria_id = $%d", idx))
		args = append(args, q.SecretariaID)
		idx++
	}
	if q.UsuarioID != "" {
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(usuarios)", idx))
		args = append(args, q.UsuarioID)
		idx++
	}
	if len(q.Status) > 0 {
		values := make([]string, len(q.Status))
		for i, st := range q.Status {
			values[i] = string(st)
		}
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", idx))
		args = append(args, values)
		idx++
	}
	if len(q.Tipo) > 0 {
		values := make([]string, len(q.Tipo))
		for i, t := range q.Tipo {
			values[i] = string(t)
		}
		clauses = append(clauses, fmt.Sprintf("tipo = ANY($%d)", idx))
		args = append(args, values)
		idx++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM demandas`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("contar demandas: %w", err)
	}

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + demandColumns + ` FROM demandas` + where +
		fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT $%d OFFSET $%d", order, order, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listar demandas: %w", err)
	}
	defer rows.Close()

	demands := []Demand{}
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, 0, err
		}
		demands = append(demands, d)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return demands, total, nil
}

// Delete remove a demanda fisicamente.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM demandas WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("remover demanda: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDemand(row pgx.Row) (Demand, error) {
	var (
		d      Demand
		id     uuid.UUID
		tipo   string
		status string
	)
	err := row.Scan(
		&id,
		&tipo,
		&status,
		&d.Descricao,
		&d.Endereco,
		&d.Imagens,
		&d.Usuarios,
		&d.Resolucao,
		&d.ImagensResolucao,
		&d.MotivoDevolucao,
		&d.MotivoRejeicao,
		&d.Feedback,
		&d.AvaliacaoResolucao,
		&d.CidadaoID,
		&d.SecretariaID,
		&d.Versao,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Demand{}, ErrNotFound
		}
		return Demand{}, err
	}
	d.ID = id.String()
	d.Tipo = Tipo(tipo)
	d.Status = Status(status)
	if len(d.ImagensResolucao) == 0 {
		d.ImagensResolucao = nil
	}
	return d, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
