package database

import (
	"context"
	"fmt"
)

// NotifyChannel is the LISTEN/NOTIFY channel the mensagem trigger publishes on
const NotifyChannel = "mensagem_changes"

// schema creates the tables this service touches when they are missing.
// On Supabase these already exist; the statements are no-ops there.
const schema = `
CREATE TABLE IF NOT EXISTS acesso (
	login      TEXT PRIMARY KEY,
	"CPF"      TEXT NOT NULL UNIQUE,
	senha      TEXT NOT NULL,
	tipo_login TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cliente (
	id_cliente TEXT PRIMARY KEY,
	nome       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prestador (
	id_prestador TEXT PRIMARY KEY,
	nome         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mensagem (
	id_mensagem   BIGINT PRIMARY KEY,
	id_cliente    TEXT NOT NULL,
	id_prestador  TEXT NOT NULL,
	texto         TEXT NOT NULL DEFAULT '',
	data_mensagem TIMESTAMPTZ NOT NULL DEFAULT now(),
	enviado_por   TEXT NOT NULL CHECK (enviado_por IN ('cliente', 'prestador')),
	lida          BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS mensagem_conversa_idx ON mensagem (id_cliente, id_prestador, data_mensagem);

CREATE TABLE IF NOT EXISTS cidade (
	id        BIGSERIAL PRIMARY KEY,
	descricao TEXT NOT NULL
);

ALTER TABLE prestador ADD COLUMN IF NOT EXISTS nome_fantasia TEXT;
ALTER TABLE prestador ADD COLUMN IF NOT EXISTS id_cidade BIGINT;

CREATE TABLE IF NOT EXISTS servico (
	id_servico BIGSERIAL PRIMARY KEY,
	nome       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS servico_prestador (
	id_prestador TEXT NOT NULL,
	id_servico   BIGINT NOT NULL,
	PRIMARY KEY (id_prestador, id_servico)
);

CREATE TABLE IF NOT EXISTS avaliacao (
	id_prestador  TEXT NOT NULL,
	id_cliente    TEXT NOT NULL,
	nota          INTEGER NOT NULL CHECK (nota BETWEEN 1 AND 5),
	descricao     TEXT NOT NULL DEFAULT '',
	data_avalicao TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (id_prestador, id_cliente)
);

DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_views WHERE viewname = 'media_notas_prestador') THEN
		CREATE VIEW media_notas_prestador AS
			SELECT id_prestador, AVG(nota) AS media_nota
			FROM avaliacao
			GROUP BY id_prestador;
	END IF;
END
$$;

CREATE TABLE IF NOT EXISTS agenda (
	id_agenda      BIGSERIAL PRIMARY KEY,
	id_prestador   TEXT NOT NULL,
	id_cliente     TEXT NOT NULL,
	data_agenda    DATE NOT NULL,
	horario_inicio TIME NOT NULL,
	horario_fim    TIME NOT NULL,
	endereco       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'agendado'
);
`

// notifyTrigger publishes every mensagem change as
// {"op": "...", "table": "mensagem", "record": {...}}. The record carries
// the key columns only: NOTIFY payloads are limited to 8000 bytes and texto
// is unbounded. Listeners fetch the row when they need the body.
const notifyTrigger = `
CREATE OR REPLACE FUNCTION mensagem_notify() RETURNS trigger AS $$
DECLARE
	rec RECORD;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('%[1]s', json_build_object(
		'op', TG_OP,
		'table', TG_TABLE_NAME,
		'record', json_build_object(
			'id_mensagem', rec.id_mensagem,
			'id_cliente', rec.id_cliente,
			'id_prestador', rec.id_prestador,
			'enviado_por', rec.enviado_por,
			'lida', rec.lida
		)
	)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS mensagem_notify_trigger ON mensagem;
CREATE TRIGGER mensagem_notify_trigger
	AFTER INSERT OR UPDATE OR DELETE ON mensagem
	FOR EACH ROW EXECUTE FUNCTION mensagem_notify();
`

// Migrate creates missing tables and installs the change notification trigger
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(notifyTrigger, db.notifyChannel)); err != nil {
		return fmt.Errorf("failed to install notify trigger: %w", err)
	}
	log.Info("Schema migrated, notifications on channel %s", db.notifyChannel)
	return nil
}
