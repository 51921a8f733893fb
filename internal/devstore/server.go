package devstore

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/questx-lab/chatsync/internal/common"
	"github.com/questx-lab/chatsync/internal/domain/channel"
	"github.com/questx-lab/chatsync/internal/domain/eventbus"
	"github.com/questx-lab/chatsync/internal/middleware"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/errorx"
	"github.com/questx-lab/chatsync/pkg/ws"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	EnableCompression: true,
	CheckOrigin:       func(*http.Request) bool { return true },
}

// Server exposes a Store as store_* RPC methods and its hub as a websocket
// change feed.
type Server struct {
	ctx    context.Context
	store  *Store
	engine authenticator.TokenEngine[model.Identity]
	rpc    *rpc.Server
}

func NewServer(ctx context.Context, store *Store, engine authenticator.TokenEngine[model.Identity]) (*Server, error) {
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(xcontext.Configs(ctx).Store.RPCName, store); err != nil {
		return nil, err
	}

	return &Server{ctx: ctx, store: store, engine: engine, rpc: rpcServer}, nil
}

// RPCHandler serves the store methods over HTTP. Every call runs in the
// context of its authenticated request.
func (s *Server) RPCHandler() http.Handler {
	return middleware.Chain(s.rpc,
		middleware.WithContext(s.ctx),
		middleware.Logger(),
		middleware.AllowCors(),
		middleware.Authenticate(s.engine),
	)
}

// FeedHandler upgrades authenticated requests to change feed connections.
func (s *Server) FeedHandler() http.Handler {
	return middleware.Chain(http.HandlerFunc(s.serveFeed),
		middleware.WithContext(s.ctx),
		middleware.Logger(),
		middleware.Authenticate(s.engine),
	)
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Unable to upgrade feed connection: %v", err)
		return
	}

	client := ws.NewClient(conn, true)
	gauge := common.PromGauges[common.FeedConnectionsActive].WithLabelValues("websocket")
	gauge.Inc()
	defer gauge.Dec()

	xcontext.Logger(ctx).Infof("Feed connected for %s", xcontext.RequestUserID(ctx))
	eventbus.ServeWebsocket(ctx, s.store.hub, client, s.authorize)
	xcontext.Logger(ctx).Infof("Feed disconnected for %s", xcontext.RequestUserID(ctx))
}

// authorize lets a caller join topics whose filters only select rows the
// caller may read.
func (s *Server) authorize(ctx context.Context, join eventbus.JoinDirective) error {
	self, err := requestIdentity(ctx)
	if err != nil {
		return err
	}

	if channelID, ok := strings.CutPrefix(join.Topic, common.TopicPresence("")); ok {
		if _, _, err := s.store.access(ctx, channelID, self.UserID); err != nil {
			return err
		}
	}

	for _, f := range join.Filters {
		switch {
		case f.Column == "" && f.Table == channel.TableChannels:
		case f.Column == "user_id":
			if f.Value != self.UserID {
				return errorx.New(errorx.PermissionDenied, "Cannot subscribe to rows of another user")
			}
		case f.Column == "channel_id":
			if _, _, err := s.store.access(ctx, f.Value, self.UserID); err != nil {
				return err
			}
		default:
			return errorx.New(errorx.PermissionDenied, "Unsupported subscription filter on %s", f.Table)
		}
	}

	return nil
}

func (s *Server) Stop() {
	s.rpc.Stop()
}
