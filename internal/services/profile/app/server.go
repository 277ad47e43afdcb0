// Package server hosts the profile service over HTTP.
//
// The wire surface is the game client's MCP endpoint shape:
//
//	POST /fortnite/api/game/v2/profile/{accountId}/client/{operation}?profileId=...&rvn=...
//
// The server owns transport concerns only: authentication, request
// decoding, error translation and persistence wiring. All profile
// semantics live in the engine and its operation handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/louisbranch/homebase/internal/content"
	"github.com/louisbranch/homebase/internal/platform/config"
	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/platform/id"
	platformotel "github.com/louisbranch/homebase/internal/platform/otel"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/engine"
	"github.com/louisbranch/homebase/internal/profile/op"
	"github.com/louisbranch/homebase/internal/storage/sqlite"
)

// maxBodyBytes bounds operation request bodies.
const maxBodyBytes = 1 << 20

// Config is the service configuration, loaded from the environment.
type Config struct {
	HTTPAddr     string `env:"PROFILE_HTTP_ADDR" envDefault:":8787"`
	DBPath       string `env:"PROFILE_DB_PATH" envDefault:"profile.db"`
	JWTSecret    string `env:"PROFILE_JWT_SECRET"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig reads the service configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Server hosts the profile service.
type Server struct {
	cfg        Config
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	engine     *engine.Engine
	env        *op.Environment
}

// New creates a configured profile server listening on the configured
// address.
func New(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	definitions, err := content.Load()
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("load content: %w", err)
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	env := &op.Environment{
		Content: definitions,
		Store:   store,
		Clock:   time.Now,
		NewID:   id.New,
		Rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	s := &Server{
		cfg:      cfg,
		listener: listener,
		store:    store,
		engine:   engine.New(env),
		env:      env,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /fortnite/api/game/v2/profile/{accountId}/client/{operation}", s.handleOperation)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpServer = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a profile server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := platformotel.Setup(ctx, "profile", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	s, err := New(cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		<-errCh
		return s.store.Close()
	case err := <-errCh:
		_ = s.store.Close()
		return err
	}
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountId")
	operation := r.PathValue("operation")

	if s.cfg.JWTSecret != "" {
		tokenAccount, err := accountFromRequest(r, []byte(s.cfg.JWTSecret), s.env.Clock)
		if err != nil {
			writeError(w, err)
			return
		}
		if tokenAccount != accountID {
			writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "token does not match account"))
			return
		}
	}

	profileID := r.URL.Query().Get("profileId")
	if profileID == "" {
		profileID = profile.NamespaceCommonCore
	}
	queryRevision := int64(-1)
	if raw := r.URL.Query().Get("rvn"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperrors.New(apperrors.CodeInvalidPayload, "rvn must be an integer"))
			return
		}
		queryRevision = parsed
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidPayload, "read request body", err))
		return
	}

	if err := s.ensureAccount(r.Context(), accountID, profileID); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.engine.Dispatch(r.Context(), engine.Request{
		AccountID:     accountID,
		ProfileID:     profileID,
		Operation:     operation,
		QueryRevision: queryRevision,
		Body:          body,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// ensureAccount lazily creates the namespaces an operation may touch. The
// requested profile comes first so its absence fails before any peers are
// created.
func (s *Server) ensureAccount(ctx context.Context, accountID, profileID string) error {
	bootstrap := func(accountID, profileID string) (*profile.Profile, error) {
		return profile.Bootstrap(accountID, profileID, s.env.Clock(), s.env.NewID)
	}
	return engine.EnsureProfiles(ctx, s.store, accountID, bootstrap,
		profileID,
		profile.NamespaceCommonCore,
		profile.NamespaceAthena,
		profile.NamespaceCampaign,
		profile.NamespaceOutpost,
	)
}

// errorResponse is the wire shape for failed operations.
type errorResponse struct {
	ErrorCode    string            `json:"errorCode"`
	ErrorMessage string            `json:"errorMessage"`
	MessageVars  map[string]string `json:"messageVars,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	if appErr.Code.GRPCCode() == codes.Internal {
		log.Printf("operation failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(appErr.Code))
	_ = json.NewEncoder(w).Encode(errorResponse{
		ErrorCode:    string(appErr.Code),
		ErrorMessage: appErr.Message,
		MessageVars:  appErr.Metadata,
	})
}

// httpStatus maps the structured code to a transport status via its gRPC
// classification, keeping the two boundaries consistent.
func httpStatus(code apperrors.Code) int {
	switch code.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.Aborted:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
