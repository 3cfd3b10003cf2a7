package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"supplyboost/internal/pkg/nacos"
)

// Resolver 把逻辑服务名解析成 "ip:port"。生产实现是 nacos.Client。
type Resolver interface {
	Resolve(serviceName string) (string, error)
}

var _ Resolver = (*nacos.Client)(nil)

// Client 是服务间调用的 HTTP 客户端：服务名解析、trace 注入、JSON 编解码。
// 超时完全由调用方传入的 context 控制，这里不做兜底。
type Client struct {
	tracer   trace.Tracer
	resolver Resolver
	http     *http.Client
}

func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	return &Client{
		tracer:   tracer,
		resolver: resolver,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// PostJSON 向 serviceName 的 path 发送 JSON 请求体。
// out 非 nil 时解码响应体；非 2xx 一律视为错误返回。
func (c *Client) PostJSON(ctx context.Context, serviceName, path string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, "call-"+serviceName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	addr, err := c.resolver.Resolve(serviceName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}

	url := "http://" + addr + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.String("peer.service", serviceName),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "call %s%s", serviceName, path)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := errors.Errorf("%s%s returned %d: %s", serviceName, path, resp.StatusCode, payload)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response body")
		}
	}
	return nil
}
