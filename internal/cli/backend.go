package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/ankittk/pabellon/internal/refdata"
	"github.com/ankittk/pabellon/internal/session"
	"github.com/ankittk/pabellon/pkg/client"
)

// backend returns a gateway client authenticated by the stored session.
func backend(ctx context.Context) (*client.Client, *session.Store) {
	tokens := session.NewStore(config.MustHomeFrom(ctx))
	return daemon.NewClient(configFrom(ctx), tokens), tokens
}

// loginHint points the user at `pabellon login` for auth failures.
func loginHint(err error) error {
	if errors.Is(err, client.ErrUnauthenticated) || errors.Is(err, client.ErrSessionExpired) {
		return fmt.Errorf("%w (run `pabellon login`)", err)
	}
	return err
}

// localBoard is a one-shot board filled by a single replace refresh, for
// commands that need board state without a running daemon.
type localBoard struct {
	client *client.Client
	refs   *refdata.Cache
	board  *board.Board
	poller *board.Poller
	ctl    *board.Controller
}

func newLocalBoard(ctx context.Context, fecha string) *localBoard {
	c, _ := backend(ctx)
	if fecha == "" {
		fecha = configFrom(ctx).Poll.Fecha
	}
	lb := &localBoard{client: c, refs: refdata.New(c, zap.L())}
	lb.board = board.New(board.WithLogger(zap.L()))
	lb.poller = board.NewPoller(lb.board, c, board.PollerOptions{
		Fecha:  fecha,
		Refs:   lb.refs,
		Logger: zap.L(),
	})
	// Commands print results themselves; no refresh after a mutation.
	lb.ctl = board.NewController(c, lb.board, nil, zap.L())
	return lb
}

// load runs one replace cycle.
func (lb *localBoard) load(ctx context.Context) error {
	if err := lb.poller.Refresh(ctx, board.ModeReplace); err != nil {
		return loginHint(err)
	}
	return nil
}

func (lb *localBoard) view() board.View {
	return lb.board.View(lb.refs)
}
