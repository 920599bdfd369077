package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
	"github.com/abdul-hamid-achik/hitfetch/packages/cookies"
	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/db"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// session ties the persisted cookie jar and credentials to a client.
type session struct {
	db     *db.Client
	jar    *cookies.Jar
	store  *credentials.Store
	client *http.Client
	logger *slog.Logger
}

func openSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	database, err := db.NewClient(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("cannot open session %s: %w", cfg.Session, err)
	}

	records, err := database.LoadCredentials()
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	store := credentials.NewStore(
		credentials.WithData(records),
		credentials.WithPersister(database),
		credentials.WithLogger(logger),
	)

	jar := cookies.New()
	if data, err := database.LoadCookies(); err != nil {
		_ = database.Close()
		return nil, err
	} else if data != "" {
		if restored, err := cookies.Deserialize(data); err != nil {
			logger.Warn("discarding unreadable cookie snapshot", "error", err)
		} else {
			jar = restored
		}
	}

	timeout := cfg.TimeoutDuration()
	transport := http.NewTransport(jar, http.WithBaseAgent(http.NewAgent(http.AgentConfig{
		Timeout:     timeout,
		ValidateSSL: cfg.GetValidateSSL(),
		Proxy:       cfg.Proxy,
	})))

	client := http.NewClient(
		http.WithTransport(transport),
		http.WithStore(store),
		http.WithLogger(logger),
		http.WithTimeout(timeout),
		http.WithMaxRedirects(cfg.MaxRedirects),
		http.WithUserAgent(cfg.UserAgent),
		http.WithLocale(cfg.Locale),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithProxy(cfg.Proxy),
	)

	logger.Debug("session opened", "path", database.Path(), "credentials", store.Count(), "cookies", jar.Len())
	return &session{db: database, jar: jar, store: store, client: client, logger: logger}, nil
}

// Close saves the cookie jar and closes the database.
func (s *session) Close() error {
	s.client.CloseIdleConnections()

	var errs []error
	data, err := s.jar.Serialize()
	if err == nil {
		err = s.db.SaveCookies(data)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("cannot save cookies: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func currentSession() (*session, error) {
	s, err := openSession(settings, logger.Logger)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return s, nil
}
