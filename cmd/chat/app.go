package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/consertja/consertja/internal/config"
	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run login first")

type options struct {
	sessionPath string
	logLevel    string
}

// app holds what a command opened; close releases it
type app struct {
	cfg     *config.Config
	store   *session.BadgerStore
	session *session.Context
	db      database.DBInterface
	logs    io.Closer
}

// openApp loads the configuration and the persisted session, and connects
// to the database when withDB is set
func openApp(opts *options, withDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logs, err := logger.Setup(opts.logLevel, "")
	if err != nil {
		return nil, err
	}

	path := opts.sessionPath
	if path == "" {
		path = cfg.SessionPath
	}
	store, err := session.OpenBadgerStore(path)
	if err != nil {
		return nil, err
	}

	sess, err := session.Restore(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, store: store, session: sess, logs: logs}
	if !withDB {
		return a, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		a.close()
		return nil, err
	}
	db, err := database.NewDatabase(database.DatabaseType(cfg.DBType), dsn, database.WithNotifyChannel(cfg.NotifyChannel))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	a.store.Close()
	a.logs.Close()
}
