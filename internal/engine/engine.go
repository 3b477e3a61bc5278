package engine

import (
	"database/sql"
	"sync"
	"time"

	"laborguard/internal/config"
	"laborguard/internal/ledger"
	"laborguard/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Ledger ledger.Writer
	Config *config.Config
	Now    func() time.Time

	allocLocks *keyedMutex
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Ledger:     ledger.Writer{DB: db},
		Config:     cfg,
		Now:        time.Now,
		allocLocks: &keyedMutex{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) today() string {
	return e.now().UTC().Format("2006-01-02")
}

// keyedMutex serializes allocation admission per worker so two
// same-day requests cannot both pass the risk gate before either inserts.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
