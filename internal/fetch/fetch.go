// 包 fetch 封装 HTTP 客户端（代理/超时/重试/熔断），用于抓取赛事页面。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/sony/gobreaker"

	"go-keiba-collector/internal/logx"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client 为带重试与熔断的 HTTP 客户端。
type Client struct {
	http    *http.Client
	retry   int
	delay   time.Duration
	breaker *gobreaker.CircuitBreaker
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// RetryDelay 为首次重试前的等待，之后指数退避。默认 300ms。
	RetryDelay time.Duration
	// BreakerFailures 连续失败超过该次数后熔断。默认 5。
	BreakerFailures int
	// BreakerCooldown 熔断后的冷却时间。默认 30s。
	BreakerCooldown time.Duration
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retry < 0 {
		return nil, fmt.Errorf("retry must be >= 0, got %d", opts.Retry)
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 300 * time.Millisecond
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	failures := uint32(opts.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Warnf("熔断器状态变化：%s %s -> %s", name, from, to)
		},
	})
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		retry:   opts.Retry,
		delay:   opts.RetryDelay,
		breaker: cb,
	}, nil
}

// StatusError 为非 2xx 响应。
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: http status %s", e.URL, e.Status) }

// Get 请求页面：失败时指数退避重试，熔断打开时立即失败。成功时调用方负责关闭 Body。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(
		func() error {
			out, err := c.breaker.Execute(func() (interface{}, error) {
				return c.do(ctx, rawURL)
			})
			if err != nil {
				return err
			}
			resp = out.(*http.Response)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retry+1)),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return false
			}
			var se *StatusError
			if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
				return false
			}
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			logx.Debugf("重试 %s（第 %d 次）：%v", rawURL, n+1, err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("GET %s: %w", rawURL, ctxErr)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// 支持环境变量覆盖 UA（KEIBA_UA）
	ua := os.Getenv("KEIBA_UA")
	if ua == "" {
		ua = defaultUA
	}
	req.Header.Set("User-Agent", ua)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Status: resp.Status, Code: resp.StatusCode}
	}
	return resp, nil
}
