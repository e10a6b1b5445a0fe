package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory lê secretarias, tipos e vínculos do banco.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory cria instância do diretório.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// SecretariaForTipo devolve o id da secretaria ativa responsável pelo tipo.
func (d *PostgresDirectory) SecretariaForTipo(ctx context.Context, tipo string) (string, error) {
	const query = `
        SELECT t.secretaria_id
        FROM tipos_demanda t
        JOIN secretarias s ON s.id = t.secretaria_id
        WHERE t.tipo = $1 AND s.ativa
    `
	var id uuid.UUID
	if err := d.pool.QueryRow(ctx, query, tipo).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id.String(), nil
}

// IsOperator indica se o usuário é operador da secretaria.
func (d *PostgresDirectory) IsOperator(ctx context.Context, secretariaID, usuarioID string) (bool, error) {
	sid, err := uuid.Parse(secretariaID)
	if err != nil {
		return false, nil
	}
	uid, err := uuid.Parse(usuarioID)
	if err != nil {
		return false, nil
	}
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM usuario_secretarias
            WHERE secretaria_id = $1 AND usuario_id = $2 AND papel = $3
        )
    `
	var ok bool
	if err := d.pool.QueryRow(ctx, query, sid, uid, PapelOperador).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListSecretariasByUsuario lista as secretarias vinculadas ao usuário.
func (d *PostgresDirectory) ListSecretariasByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]SecretariaWithRole, error) {
	const query = `
        SELECT s.id, s.nome, s.slug, us.papel
        FROM usuario_secretarias us
        JOIN secretarias s ON s.id = us.secretaria_id
        WHERE us.usuario_id = $1 AND s.ativa
        ORDER BY s.nome
    `
	rows, err := d.pool.Query(ctx, query, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecretariaWithRole
	for rows.Next() {
		var sec SecretariaWithRole
		if err := rows.Scan(&sec.SecretariaID, &sec.Secretaria, &sec.Slug, &sec.Papel); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// ListTipos devolve o mapeamento tipo → secretaria.
func (d *PostgresDirectory) ListTipos(ctx context.Context) ([]TipoSecretaria, error) {
	const query = `
        SELECT t.tipo, t.secretaria_id, s.nome
        FROM tipos_demanda t
        JOIN secretarias s ON s.id = t.secretaria_id
        ORDER BY t.tipo
    `
	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TipoSecretaria
	for rows.Next() {
		var ts TipoSecretaria
		if err := rows.Scan(&ts.Tipo, &ts.SecretariaID, &ts.Secretaria); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// SetTipo associa (ou reassocia) o tipo a uma secretaria existente.
func (d *PostgresDirectory) SetTipo(ctx context.Context, tipo string, secretariaID uuid.UUID) error {
	tipo = strings.TrimSpace(tipo)
	if tipo == "" {
		return fmt.Errorf("tipo obrigatório")
	}
	const query = `
        INSERT INTO tipos_demanda (tipo, secretaria_id)
        SELECT $1, id FROM secretarias WHERE id = $2
        ON CONFLICT (tipo) DO UPDATE SET secretaria_id = EXCLUDED.secretaria_id
    `
	tag, err := d.pool.Exec(ctx, query, tipo, secretariaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
