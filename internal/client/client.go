// Package client wraps the remote ticketing services. Each method maps one
// domain operation to one HTTP call: a single attempt, no retry and no
// caching. Non-2xx responses come back as *HTTPError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/team-spoved/spoved/internal/automation"
	"github.com/team-spoved/spoved/internal/session"
)

// HTTPError is a non-2xx answer from a remote service.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

// StatusCode returns the HTTP status of err, or 0 if err is not an *HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// Endpoints are the base URLs of the remote services.
type Endpoints struct {
	Auth   string
	User   string
	Ticket string
	Media  string
	GenAI  string
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides the clock used for client-side validation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Client groups the per-service wrappers. They share the signed-in session.
type Client struct {
	Auth    *AuthClient
	Users   *UserClient
	Tickets *TicketClient
	Media   *MediaClient
	Voice   *VoiceClient

	sess *sessionHolder
}

func New(ep Endpoints, sess *session.Session, hook *automation.Client, opts ...Option) *Client {
	o := options{
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	holder := &sessionHolder{s: sess}
	mk := func(base, component string) rest {
		return rest{
			baseURL: strings.TrimRight(base, "/"),
			http:    o.httpClient,
			sess:    holder,
			log:     o.log.With().Str("component", component).Logger(),
		}
	}
	return &Client{
		Auth:    &AuthClient{rest: mk(ep.Auth, "client.auth")},
		Users:   &UserClient{rest: mk(ep.User, "client.users")},
		Tickets: &TicketClient{rest: mk(ep.Ticket, "client.tickets"), now: o.now},
		Media:   &MediaClient{rest: mk(ep.Media, "client.media"), hook: hook},
		Voice:   &VoiceClient{rest: mk(ep.GenAI, "client.voice")},
		sess:    holder,
	}
}

// Session returns the identity currently attached to requests.
func (c *Client) Session() *session.Session { return c.sess.get() }

// SetSession swaps the identity attached to subsequent requests.
func (c *Client) SetSession(s *session.Session) { c.sess.set(s) }

type sessionHolder struct {
	mu sync.RWMutex
	s  *session.Session
}

func (h *sessionHolder) get() *session.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

func (h *sessionHolder) set(s *session.Session) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

func (h *sessionHolder) token() string {
	return h.get().Token()
}

func (h *sessionHolder) userID() int {
	if s := h.get(); s != nil {
		return s.UserID
	}
	return 0
}

type rest struct {
	baseURL string
	http    *http.Client
	sess    *sessionHolder
	log     zerolog.Logger
}

func (r *rest) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := r.sess.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// do sends req and decodes the body into out: *[]byte and *string take the
// raw body, anything else is JSON-decoded. A nil out discards the body.
func (r *rest) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s failed: read body: %w", op, err)
	}
	r.log.Debug().
		Str("op", op).
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       strings.TrimSpace(string(body)),
		}
	}
	switch v := out.(type) {
	case nil:
	case *[]byte:
		*v = body
	case *string:
		*v = string(body)
	default:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s failed: decode response: %w", op, err)
		}
	}
	return nil
}

func (r *rest) doJSON(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s failed: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	req, err := r.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return r.do(req, op, out)
}

func statusText(resp *http.Response) string {
	s := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}

func idPath(prefix string, id int) string {
	return prefix + "/" + strconv.Itoa(id)
}
