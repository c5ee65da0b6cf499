package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Expressions evaluated in a tab.
const (
	locationExpression = "window.location.href"
	documentExpression = "document.documentElement ? document.documentElement.outerHTML : ''"
)

// Session is one open browser tab. Calls on a Session are serialized; the
// WebSocket to the tab is opened on first use and closed by Release.
type Session struct {
	client *Client
	target Target

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   int64
	released bool
}

func newSession(c *Client, t Target) *Session {
	return &Session{client: c, target: t}
}

// ID returns the DevTools target ID of the tab.
func (s *Session) ID() string {
	return s.target.ID
}

// Title returns the tab title at listing time.
func (s *Session) Title() string {
	return s.target.Title
}

// CurrentURL asks the tab for its current location. A tab whose location
// is not a string (undefined or null while it is torn down) has no URL and
// yields "".
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	res, err := s.run(ctx, locationExpression)
	if err != nil {
		return "", err
	}
	if res.Result.Type != "string" {
		return "", nil
	}
	return decodeString(locationExpression, res)
}

// Document returns the serialized DOM of the tab as currently rendered.
func (s *Session) Document(ctx context.Context) (string, error) {
	return s.evaluate(ctx, documentExpression)
}

// Close closes the tab. Page.close is sent over the tab's WebSocket; if
// that fails the HTTP close endpoint is tried.
func (s *Session) Close(ctx context.Context) error {
	wsErr := s.call(ctx, "Page.close", struct{}{}, nil)
	if wsErr == nil {
		return nil
	}
	if errors.Is(wsErr, ErrSessionReleased) {
		return wsErr
	}
	if err := s.client.closeTarget(ctx, s.target.ID); err != nil {
		return errors.Join(wsErr, err)
	}
	return nil
}

// Release closes the WebSocket to the tab. It never closes the tab itself
// and is safe to call more than once.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

func (s *Session) evaluate(ctx context.Context, expression string) (string, error) {
	res, err := s.run(ctx, expression)
	if err != nil {
		return "", err
	}
	return decodeString(expression, res)
}

// run evaluates expression in the tab; a thrown exception is an error.
func (s *Session) run(ctx context.Context, expression string) (*evaluateResult, error) {
	var res evaluateResult
	params := evaluateParams{Expression: expression, ReturnByValue: true}
	if err := s.call(ctx, "Runtime.evaluate", params, &res); err != nil {
		return nil, err
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("%w: evaluate %q: %s", ErrProtocol, expression, res.ExceptionDetails.Text)
	}
	return &res, nil
}

func decodeString(expression string, res *evaluateResult) (string, error) {
	var value string
	if err := json.Unmarshal(res.Result.Value, &value); err != nil {
		return "", fmt.Errorf("%w: evaluate %q returned %s, not a string", ErrProtocol, expression, res.Result.Type)
	}
	return value, nil
}

type cdpRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type cdpResponse struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// call sends one protocol command and waits for its response, skipping
// events. It is bounded by the client's call timeout.
func (s *Session) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return fmt.Errorf("%w: %s: %w", ErrProtocol, s.target.ID, ErrSessionReleased)
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.nextID++
	id := s.nextID
	if err := conn.WriteJSON(cdpRequest{ID: id, Method: method, Params: params}); err != nil {
		s.dropConn()
		return fmt.Errorf("%w: %s: %w", ErrProtocol, method, err)
	}

	for {
		var resp cdpResponse
		if err := conn.ReadJSON(&resp); err != nil {
			s.dropConn()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %s: %w", ErrProtocol, method, ctxErr)
			}
			return fmt.Errorf("%w: %s: %w", ErrProtocol, method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%w: %s: %s (code %d)", ErrProtocol, method, resp.Error.Message, resp.Error.Code)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("%w: decode %s result: %w", ErrProtocol, method, err)
			}
		}
		return nil
	}
}

// connect returns the open WebSocket, dialing it if needed. Callers hold s.mu.
func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	if s.target.WebSocketDebuggerURL == "" {
		// Another debugger is attached to the tab.
		return nil, fmt.Errorf("%w: tab %s has no debugger URL", ErrProtocol, s.target.ID)
	}

	conn, resp, err := s.client.dialer.DialContext(ctx, s.target.WebSocketDebuggerURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial tab %s: %w", ErrProtocol, s.target.ID, err)
	}
	s.conn = conn
	return conn, nil
}

// dropConn discards a connection after an I/O error. Callers hold s.mu.
func (s *Session) dropConn() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
