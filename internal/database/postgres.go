package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
)

var log = logger.New("database")

const uniqueViolation = "23505"

type PostgresDB struct {
	*sql.DB
	notifyChannel string
}

// Option configures a PostgresDB
type Option func(*PostgresDB)

// WithNotifyChannel overrides the channel used by the mensagem trigger
func WithNotifyChannel(channel string) Option {
	return func(db *PostgresDB) {
		if channel != "" {
			db.notifyChannel = channel
		}
	}
}

func NewPostgresDB(connStr string, opts ...Option) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	pg := &PostgresDB{DB: db, notifyChannel: NotifyChannel}
	for _, opt := range opts {
		opt(pg)
	}
	return pg, nil
}

func (db *PostgresDB) GetAccessByCPF(ctx context.Context, cpf string) (*models.Access, error) {
	access := &models.Access{}

	err := db.QueryRowContext(ctx, `
		SELECT login, "CPF", senha, tipo_login
		FROM acesso WHERE "CPF" = $1`, cpf).Scan(
		&access.Login, &access.CPF, &access.PasswordHash, &access.Type)

	if err == sql.ErrNoRows {
		return nil, ErrAccessNotFound
	}
	if err != nil {
		return nil, err
	}

	return access, nil
}

func (db *PostgresDB) LookupRole(ctx context.Context, userID string) (models.Role, error) {
	var tipo string
	err := db.QueryRowContext(ctx,
		"SELECT tipo_login FROM acesso WHERE login = $1", userID).Scan(&tipo)
	if err == sql.ErrNoRows {
		return "", ErrAccessNotFound
	}
	if err != nil {
		return "", err
	}

	return models.ParseRole(tipo)
}

const messageColumns = "id_mensagem, id_cliente, id_prestador, texto, data_mensagem, enviado_por, lida"

func (db *PostgresDB) ListConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+`
		FROM mensagem
		WHERE id_cliente = $1 AND id_prestador = $2
		ORDER BY data_mensagem ASC`,
		key.ClientID, key.ProviderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (db *PostgresDB) InsertMessage(ctx context.Context, msg models.Message) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO mensagem ("+messageColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		msg.ID, msg.ClientID, msg.ProviderID, msg.Text, msg.SentAt.UTC(), string(msg.SentBy), msg.Read,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateMessage
	}
	return err
}

func (db *PostgresDB) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+messageColumns+" FROM mensagem WHERE id_mensagem = $1", id)
	if err != nil {
		return models.Message{}, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return models.Message{}, err
	}
	if len(messages) == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return messages[0], nil
}

func (db *PostgresDB) MarkConversationRead(ctx context.Context, key models.ConversationKey, sentBy models.Role) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE mensagem SET lida = true
		WHERE id_cliente = $1 AND id_prestador = $2 AND enviado_por = $3 AND lida = false`,
		key.ClientID, key.ProviderID, string(sentBy),
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (db *PostgresDB) CountUnread(ctx context.Context, userID string, role models.Role) (int, error) {
	column, err := participantColumn(role)
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mensagem WHERE "+column+" = $1 AND enviado_por = $2 AND lida = false",
		userID, string(role.Counterpart()),
	).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (db *PostgresDB) ListMessagesForUser(ctx context.Context, userID string, role models.Role) ([]models.Message, error) {
	column, err := participantColumn(role)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM mensagem WHERE "+column+" = $1 ORDER BY data_mensagem DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (db *PostgresDB) CounterpartNames(ctx context.Context, role models.Role, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var query string
	switch role {
	case models.RoleClient:
		query = "SELECT id_cliente, nome FROM cliente WHERE id_cliente = ANY($1)"
	case models.RoleProvider:
		query = "SELECT id_prestador, nome FROM prestador WHERE id_prestador = ANY($1)"
	default:
		return nil, models.ErrUnknownRole
	}

	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan name row: %w", err)
		}
		if name.Valid {
			names[id] = name.String
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating name rows: %w", err)
	}

	return names, nil
}

func (db *PostgresDB) ListAppointments(ctx context.Context, providerID string, day time.Time) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id_agenda, id_prestador, id_cliente, data_agenda,
		       to_char(horario_inicio, 'HH24:MI:SS'), to_char(horario_fim, 'HH24:MI:SS'),
		       COALESCE(endereco, ''), status
		FROM agenda
		WHERE id_prestador = $1 AND data_agenda = $2
		ORDER BY horario_inicio ASC`,
		providerID, day.Format("2006-01-02"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []models.Appointment
	for rows.Next() {
		var a models.Appointment
		err := rows.Scan(&a.ID, &a.ProviderID, &a.ClientID, &a.Date, &a.Start, &a.End, &a.Address, &a.Status)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return appts, nil
}

func (db *PostgresDB) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO agenda (id_prestador, id_cliente, data_agenda, horario_inicio, horario_fim, endereco, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id_agenda`,
		appt.ProviderID, appt.ClientID, appt.Date.Format("2006-01-02"),
		appt.Start, appt.End, appt.Address, appt.Status,
	).Scan(&appt.ID)
}

func (db *PostgresDB) DeleteAppointment(ctx context.Context, providerID string, id int64) error {
	result, err := db.ExecContext(ctx,
		"DELETE FROM agenda WHERE id_agenda = $1 AND id_prestador = $2", id, providerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAppointmentNotFound
	}

	return nil
}

func (db *PostgresDB) ListProviders(ctx context.Context) ([]models.Provider, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.id_prestador, p.nome, COALESCE(p.nome_fantasia, ''),
		       COALESCE(c.descricao, ''), COALESCE(m.media_nota, 0)::float8,
		       COALESCE(array_agg(s.nome ORDER BY s.nome) FILTER (WHERE s.nome IS NOT NULL), '{}')
		FROM prestador p
		LEFT JOIN cidade c ON c.id = p.id_cidade
		LEFT JOIN media_notas_prestador m ON m.id_prestador = p.id_prestador
		LEFT JOIN servico_prestador sp ON sp.id_prestador = p.id_prestador
		LEFT JOIN servico s ON s.id_servico = sp.id_servico
		GROUP BY p.id_prestador, p.nome, p.nome_fantasia, c.descricao, m.media_nota
		ORDER BY p.nome ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		var p models.Provider
		var services []string
		err := rows.Scan(&p.ID, &p.Name, &p.TradeName, &p.City, &p.Rating, pq.Array(&services))
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}
		p.Services = services
		providers = append(providers, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider rows: %w", err)
	}

	return providers, nil
}

func (db *PostgresDB) ProviderRating(ctx context.Context, providerID string) (float64, int, error) {
	var average float64
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT media_nota FROM media_notas_prestador WHERE id_prestador = $1), 0)::float8,
		       (SELECT COUNT(*) FROM avaliacao WHERE id_prestador = $1)`,
		providerID,
	).Scan(&average, &count)
	if err != nil {
		return 0, 0, err
	}
	return average, count, nil
}

// ListReviews returns the provider's reviews, newest first. limit <= 0
// returns all of them.
func (db *PostgresDB) ListReviews(ctx context.Context, providerID string, limit int) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.id_prestador, a.id_cliente, COALESCE(cl.nome, ''), a.nota,
		       COALESCE(a.descricao, ''), a.data_avalicao
		FROM avaliacao a
		LEFT JOIN cliente cl ON cl.id_cliente = a.id_cliente
		WHERE a.id_prestador = $1
		ORDER BY a.data_avalicao DESC
		LIMIT $2`,
		providerID, sql.NullInt64{Int64: int64(limit), Valid: limit > 0},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		err := rows.Scan(&r.ProviderID, &r.ClientID, &r.ClientName, &r.Rating, &r.Comment, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}

func (db *PostgresDB) InsertReview(ctx context.Context, review *models.Review) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO avaliacao (id_prestador, id_cliente, nota, descricao)
		VALUES ($1, $2, $3, $4)
		RETURNING data_avalicao`,
		review.ProviderID, review.ClientID, review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateReview
	}
	return err
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}

func participantColumn(role models.Role) (string, error) {
	switch role {
	case models.RoleClient:
		return "id_cliente", nil
	case models.RoleProvider:
		return "id_prestador", nil
	}
	return "", models.ErrUnknownRole
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var sentBy string

		err := rows.Scan(&msg.ID, &msg.ClientID, &msg.ProviderID, &msg.Text, &msg.SentAt, &sentBy, &msg.Read)
		if err != nil {
			return nil, err
		}

		msg.SentBy = models.Role(strings.ToLower(sentBy))
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
