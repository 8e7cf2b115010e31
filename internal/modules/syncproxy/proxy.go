package syncproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shapePath = "/v1/shape"

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// Proxy forwards authorized shape requests to ElectricSQL and streams the answer back.
type Proxy struct {
	upstream string
	client   *http.Client
	tokens   middleware.TokenValidator
	log      *zap.Logger
}

type Option func(*Proxy)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) { p.client = c }
}

func New(electricURL string, tokens middleware.TokenValidator, log *zap.Logger, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(electricURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid electric url %q", electricURL)
	}
	p := &Proxy{
		upstream: strings.TrimRight(u.String(), "/") + shapePath,
		client:   &http.Client{},
		tokens:   tokens,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Proxy) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sync", middleware.Auth(p.tokens), p.handle)
}

func (p *Proxy) handle(c *gin.Context) {
	var q Query
	if !response.BindQuery(c, &q) {
		return
	}
	claim, _ := middleware.CurrentSession(c)

	var mismatch *WhereMismatchError
	switch err := Authorize(claim, q); {
	case err == nil:
	case errors.As(err, &mismatch):
		response.Forbidden(c, fmt.Sprintf("Where does not have the allowed value of `%s`", mismatch.Allowed))
		return
	default:
		response.Forbidden(c, "Query is not allowed")
		return
	}

	p.Forward(c, q)
}

// Forward streams the upstream shape response to the client, flushing after every chunk so
// live requests reach the browser as they arrive.
func (p *Proxy) Forward(c *gin.Context, q Query) {
	ctx := c.Request.Context()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.upstream+"?"+q.Encode(), nil)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.Abort()
			return
		}
		p.log.Warn("electric unreachable", zap.String("table", q.Table), zap.Error(err))
		_ = c.Error(err)
		response.Abort(c, http.StatusBadGateway, "Sync service is unavailable")
		return
	}
	defer resp.Body.Close()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := c.Writer.Write(buf[:n]); err != nil {
				p.log.Debug("sync client went away", zap.Error(err))
				return
			}
			c.Writer.Flush()
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			if ctx.Err() == nil {
				p.log.Warn("sync stream interrupted", zap.String("table", q.Table), zap.Error(readErr))
			}
			return
		}
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	if conn := src.Get("Connection"); conn != "" {
		for _, name := range strings.Split(conn, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
}
