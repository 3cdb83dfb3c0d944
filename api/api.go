// Package api exposes the bulletin board over HTTP: reads for verifiers
// and browsers, writes for guardians and the tally coordinator. It is a
// thin facade — all protocol validation happens in the core packages
// before anything is published.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/voteguard/voteguard-node/board"
	"github.com/voteguard/voteguard-node/guardian"
	"github.com/voteguard/voteguard-node/log"
)

// Config configures the API HTTP server.
type Config struct {
	Host  string
	Port  int
	Board board.Board
}

// API is the bulletin-board HTTP server.
type API struct {
	router *chi.Mux
	board  board.Board
}

// New creates an API instance and starts its HTTP server.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Board == nil {
		return nil, fmt.Errorf("missing board instance")
	}
	a := &API{board: conf.Board}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	// election endpoints
	a.router.Get(ConfigEndpoint, a.getConfig)
	a.router.Post(ConfigEndpoint, a.setConfig)
	a.router.Get(ResultEndpoint, a.getResult)
	a.router.Post(ResultEndpoint, a.publishResult)
	// guardian endpoints
	a.router.Get(GuardiansEndpoint, a.listGuardians)
	a.router.Get(GuardianEndpoint, a.getGuardian)
	a.router.Post(GuardianKeyEndpoint, a.publishArtifact(a.board.PublishPublicKey))
	a.router.Post(GuardianSharesEndpoint, a.publishArtifact(a.board.PublishEncryptedShares))
	a.router.Post(GuardianStatusEndpoint, a.publishStatus)
	a.router.Post(GuardianExcludeEndpoint, a.setExcluded)
	// tally and decryption endpoints
	a.router.Get(TallyEndpoint, a.getTally)
	a.router.Post(TallyEndpoint, a.publishTally)
	a.router.Post(DecryptionShareEndpoint, a.publishArtifact(a.board.PublishDecryptionShare))
	a.router.Post(DecryptionCommitEndpoint, a.publishArtifact(a.board.PublishProofCommits))
	a.router.Post(DecryptionRespondEndpoint, a.publishArtifact(a.board.PublishProofResponses))
}

func writeBoardErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrNotFound):
		ErrResourceNotFound.Write(w)
	case errors.Is(err, board.ErrAlreadyPublished):
		ErrAlreadyPublished.Write(w)
	default:
		ErrGenericInternalServer.WithErr(err).Write(w)
	}
}

func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.board.Config(r.Context())
	if err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteJSON(w, cfg)
}

func (a *API) setConfig(w http.ResponseWriter, r *http.Request) {
	cfg := &board.Config{}
	if err := jsonBody(r, cfg); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.board.SetConfig(r.Context(), cfg); err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteOK(w)
}

func (a *API) listGuardians(w http.ResponseWriter, r *http.Request) {
	records, err := a.board.Guardians(r.Context())
	if err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteJSON(w, records)
}

func (a *API) getGuardian(w http.ResponseWriter, r *http.Request) {
	index, ok := guardianIndex(r)
	if !ok {
		ErrMalformedGuardianIdx.Write(w)
		return
	}
	rec, err := a.board.Guardian(r.Context(), index)
	if err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteJSON(w, rec)
}

// publishArtifact builds a handler that forwards an opaque artifact body
// to a per-guardian board write.
func (a *API) publishArtifact(publish func(ctx context.Context, index uint32, data []byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := guardianIndex(r)
		if !ok {
			ErrMalformedGuardianIdx.Write(w)
			return
		}
		data, err := readArtifactBody(r)
		if err != nil {
			ErrMalformedBody.WithErr(err).Write(w)
			return
		}
		if len(data) == 0 {
			ErrEmptyArtifact.Write(w)
			return
		}
		if err := publish(r.Context(), index, data); err != nil {
			writeBoardErr(w, err)
			return
		}
		httpWriteOK(w)
	}
}

func (a *API) publishStatus(w http.ResponseWriter, r *http.Request) {
	index, ok := guardianIndex(r)
	if !ok {
		ErrMalformedGuardianIdx.Write(w)
		return
	}
	status := &guardian.Status{}
	if err := jsonBody(r, status); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := status.Validate(); err != nil {
		ErrMalformedStatus.WithErr(err).Write(w)
		return
	}
	if err := a.board.PublishStatus(r.Context(), index, status); err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteOK(w)
}

func (a *API) setExcluded(w http.ResponseWriter, r *http.Request) {
	index, ok := guardianIndex(r)
	if !ok {
		ErrMalformedGuardianIdx.Write(w)
		return
	}
	body := struct {
		Excluded bool `json:"excluded"`
	}{}
	if err := jsonBody(r, &body); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.board.SetExcluded(r.Context(), index, body.Excluded); err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteOK(w)
}

func (a *API) getTally(w http.ResponseWriter, r *http.Request) {
	data, err := a.board.EncryptedTally(r.Context())
	if err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteBinary(w, data)
}

func (a *API) publishTally(w http.ResponseWriter, r *http.Request) {
	data, err := readArtifactBody(r)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(data) == 0 {
		ErrEmptyArtifact.Write(w)
		return
	}
	if err := a.board.PublishEncryptedTally(r.Context(), data); err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteOK(w)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	result, err := a.board.Result(r.Context())
	if err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteJSON(w, result)
}

func (a *API) publishResult(w http.ResponseWriter, r *http.Request) {
	result := &board.Result{}
	if err := jsonBody(r, result); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.board.PublishResult(r.Context(), result); err != nil {
		writeBoardErr(w, err)
		return
	}
	httpWriteOK(w)
}
