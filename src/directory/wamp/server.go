package wamp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/axolotl/src/common"
	"github.com/mosaicnetworks/axolotl/src/directory"
	"github.com/sirupsen/logrus"
)

// Server is a WAMP router through which nodes query and update a directory.
type Server struct {
	address    string
	realm      string
	router     router.Router
	callee     *client.Client
	store      directory.Store
	httpServer *http.Server
	tlsEnabled bool
	logger     *logrus.Entry
}

// NewServer instantiates a Server backed by store. If certFile and keyFile
// are both set, the websocket endpoint is served over TLS.
func NewServer(address string,
	realm string,
	store directory.Store,
	certFile string,
	keyFile string,
	logger *logrus.Entry) (*Server, error) {

	// Create router instance.
	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	wss := router.NewWebsocketServer(nxr)

	httpServer := &http.Server{
		Handler: wss,
		Addr:    address,
	}

	tlsEnabled := false
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			nxr.Close()
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
		tlsEnabled = true
	}

	res := &Server{
		address:    address,
		realm:      realm,
		router:     nxr,
		store:      store,
		httpServer: httpServer,
		tlsEnabled: tlsEnabled,
		logger:     logger,
	}

	if err := res.registerProcedures(); err != nil {
		nxr.Close()
		return nil, err
	}

	return res, nil
}

// registerProcedures connects an in-process callee to the router and
// registers the directory procedures.
func (s *Server) registerProcedures() error {
	callee, err := client.ConnectLocal(s.router, client.Config{
		Realm:  s.realm,
		Logger: s.logger,
	})
	if err != nil {
		return err
	}

	if err := callee.Register(LookupProcedure, s.lookupHandler, nil); err != nil {
		callee.Close()
		return err
	}

	if err := callee.Register(AnnounceProcedure, s.announceHandler, nil); err != nil {
		callee.Close()
		return err
	}

	s.callee = callee

	s.logger.Debug("Registered directory procedures with router")

	return nil
}

// Router exposes the embedded router, for in-process clients.
func (s *Server) Router() router.Router {
	return s.router
}

// Run listens on the configured address and serves websocket connections.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.WithError(err).Error("Run")
		return err
	}
	return s.Serve(ln)
}

// Serve serves websocket connections accepted on ln. It blocks until
// Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.address = ln.Addr().String()

	s.logger.WithFields(logrus.Fields{
		"address": s.address,
		"realm":   s.realm,
		"tls":     s.tlsEnabled,
	}).Info("Serving directory")

	var err error
	if s.tlsEnabled {
		// The certificates are already loaded in the TLSConfig.
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Serve")
		return err
	}
	return nil
}

// Shutdown stops the websocket server, and the wamp router
func (s *Server) Shutdown() {
	defer s.router.Close()

	if s.callee != nil {
		s.callee.Close()
	}

	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		s.logger.WithError(err).Error("Shutting down http server")
	}
}

// Addr returns the address of the server
func (s *Server) Addr() string {
	return s.address
}

func (s *Server) lookupHandler(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	if len(inv.Arguments) != 1 {
		return errResult(ErrBadRequest,
			fmt.Sprintf("Invocation should contain 1 argument, not %d", len(inv.Arguments)))
	}

	key, ok := wamp.AsString(inv.Arguments[0])
	if !ok {
		return errResult(ErrBadRequest, "Error reading invocation first argument")
	}

	rec, err := s.store.Lookup(ctx, key)
	if err != nil {
		if common.IsStore(err, common.KeyNotFound) {
			return errResult(ErrNotFound, key)
		}
		s.logger.WithError(err).WithField("key", key).Error("Lookup")
		return errResult(ErrInternal, err.Error())
	}

	s.logger.WithFields(logrus.Fields{
		"key":  key,
		"addr": rec.Addr(),
	}).Debug("Lookup")

	return client.InvokeResult{
		Args: wamp.List{rec.Host, int64(rec.Port)},
	}
}

func (s *Server) announceHandler(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
	rec, err := parseRecord(inv.Arguments)
	if err != nil {
		return errResult(ErrBadRequest, err.Error())
	}

	if err := s.store.Announce(ctx, rec); err != nil {
		s.logger.WithError(err).WithField("key", rec.PublicKey).Error("Announce")
		return errResult(ErrInternal, err.Error())
	}

	s.logger.WithFields(logrus.Fields{
		"key":  rec.PublicKey,
		"addr": rec.Addr(),
	}).Debug("Announce")

	return client.InvokeResult{}
}

func parseRecord(args wamp.List) (directory.Record, error) {
	if len(args) != 3 {
		return directory.Record{}, fmt.Errorf("Invocation should contain 3 arguments, not %d", len(args))
	}

	key, ok := wamp.AsString(args[0])
	if !ok || key == "" {
		return directory.Record{}, fmt.Errorf("Error reading key argument")
	}

	host, ok := wamp.AsString(args[1])
	if !ok {
		return directory.Record{}, fmt.Errorf("Error reading host argument")
	}

	port, ok := wamp.AsInt64(args[2])
	if !ok || port < 0 || port > 65535 {
		return directory.Record{}, fmt.Errorf("Error reading port argument")
	}

	return directory.Record{PublicKey: key, Host: host, Port: uint16(port)}, nil
}

func errResult(uri string, msg string) client.InvokeResult {
	return client.InvokeResult{
		Err:  wamp.URI(uri),
		Args: wamp.List{msg},
	}
}
