// Package qrcode 生成会员推广二维码
package qrcode

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	// 推广链接中的参数名，落地页据此绑定上级
	ParamReferrer = "ref"
	ParamTenant   = "tenant"
)

// Generator 推广二维码生成器
type Generator struct {
	baseURL *url.URL
	size    int
	level   qrcode.RecoveryLevel
}

// Option 生成器选项
type Option func(*Generator)

// WithSize 设置二维码尺寸（像素）
func WithSize(size int) Option {
	return func(g *Generator) {
		if size > 0 {
			g.size = size
		}
	}
}

// WithHighRecovery 使用 25% 纠错，适合中间叠加头像的海报
func WithHighRecovery() Option {
	return func(g *Generator) {
		g.level = qrcode.High
	}
}

// NewGenerator 以推广落地页地址创建生成器
func NewGenerator(baseURL string, opts ...Option) (*Generator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid invite base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid invite base url: %q", baseURL)
	}

	g := &Generator{
		baseURL: u,
		size:    DefaultSize,
		level:   qrcode.Medium,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// InviteURL 会员的推广链接，保留落地页原有查询参数
func (g *Generator) InviteURL(memberID, tenantID int64) string {
	u := *g.baseURL
	q := u.Query()
	q.Set(ParamReferrer, strconv.FormatInt(memberID, 10))
	if tenantID > 0 {
		q.Set(ParamTenant, strconv.FormatInt(tenantID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// PNG 生成推广二维码图片
func (g *Generator) PNG(memberID, tenantID int64) ([]byte, error) {
	data, err := qrcode.Encode(g.InviteURL(memberID, tenantID), g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode invite qrcode: %w", err)
	}
	return data, nil
}

// DataURL 生成可直接放入 img 标签的二维码
func (g *Generator) DataURL(memberID, tenantID int64) (string, error) {
	data, err := g.PNG(memberID, tenantID)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
