package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMarketDataUnavailable 表示从未成功获取过行情且本次刷新失败，调用方无法得到任何快照。
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	// ErrUpstream 表示上游行情接口返回错误或无法解析的数据。
	ErrUpstream = errors.New("upstream feed error")
	// ErrUpstreamTimeout 表示上游请求超时。
	ErrUpstreamTimeout = errors.New("upstream feed timeout")
)

// IsRetryable 判断错误是否值得重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusError 描述非 2xx 响应。
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.Path)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) || errors.Is(err, ErrUpstreamTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrUpstreamTimeout, err)
	}
	return errors.Join(ErrUpstream, err)
}
