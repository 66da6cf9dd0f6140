// Package api exposes the node over HTTP: census management, submission of
// membership proofs and aggregation of the proofs of a process.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/sequencer"
	stg "github.com/aragonzkresearch/rovote/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
	// DefaultJobTimeout bounds the duration of an aggregation job.
	DefaultJobTimeout = time.Hour
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	ChainID   uint64
	Storage   *stg.Storage
	CensusDB  *censusdb.CensusDB
	Sequencer *sequencer.Sequencer
	// JobTimeout bounds each aggregation job, DefaultJobTimeout if zero.
	JobTimeout time.Duration
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	server    *http.Server
	chainID   uint64
	storage   *stg.Storage
	censusDB  *censusdb.CensusDB
	sequencer *sequencer.Sequencer
	jobs      *jobsManager
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. If the port is zero only the router is built, which is
// useful for testing.
func New(ctx context.Context, conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.CensusDB == nil {
		return nil, fmt.Errorf("missing census database")
	}
	if conf.Sequencer == nil || conf.Sequencer.Engine == nil {
		return nil, fmt.Errorf("missing sequencer")
	}
	if conf.JobTimeout <= 0 {
		conf.JobTimeout = DefaultJobTimeout
	}
	a := &API{
		chainID:   conf.ChainID,
		storage:   conf.Storage,
		censusDB:  conf.CensusDB,
		sequencer: conf.Sequencer,
		jobs:      newJobsManager(conf.JobTimeout),
	}
	a.jobs.start(ctx)
	a.initRouter()
	if conf.Port == 0 {
		return a, nil
	}

	addr := net.JoinHostPort(conf.Host, fmt.Sprintf("%d", conf.Port))
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port, "chainID", conf.ChainID)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Close stops the running aggregation jobs and shuts the HTTP server down.
func (a *API) Close(ctx context.Context) error {
	a.jobs.stop()
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *API) engine() *prover.Engine {
	return a.sequencer.Engine
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	// The following endpoints are registered:
	// - GET /ping: No parameters
	// - GET /info: No parameters
	// - POST /censuses: No parameters
	// - GET /censuses/<root>: No parameters
	// - GET /censuses/<root>/proof?key=<key>: Parameters: key
	// - POST /proofs: No parameters
	// - GET /processes/<processId>/proofs: No parameters
	// - POST /aggregations: No parameters
	// - GET /aggregations/<jobId>: No parameters
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.info)
	// census endpoints
	log.Infow("register handler", "endpoint", CensusesEndpoint, "method", "POST")
	a.router.Post(CensusesEndpoint, a.newCensus)
	log.Infow("register handler", "endpoint", CensusEndpoint, "method", "GET")
	a.router.Get(CensusEndpoint, a.census)
	log.Infow("register handler", "endpoint", CensusProofEndpoint, "method", "GET", "parameters", CensusKeyQueryParam)
	a.router.Get(CensusProofEndpoint, a.censusProof)
	// proof endpoints
	log.Infow("register handler", "endpoint", ProofsEndpoint, "method", "POST")
	a.router.Post(ProofsEndpoint, a.newProof)
	log.Infow("register handler", "endpoint", ProcessProofsEndpoint, "method", "GET")
	a.router.Get(ProcessProofsEndpoint, a.processProofs)
	// aggregation endpoints
	log.Infow("register handler", "endpoint", AggregationsEndpoint, "method", "POST")
	a.router.Post(AggregationsEndpoint, a.newAggregation)
	log.Infow("register handler", "endpoint", AggregationEndpoint, "method", "GET")
	a.router.Get(AggregationEndpoint, a.aggregation)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(DefaultLoggingConfig()))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	// the first proof of a census height compiles the membership circuit
	a.router.Use(middleware.Timeout(5 * time.Minute))

	a.registerHandlers()
}
