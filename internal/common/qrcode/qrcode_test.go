package qrcode

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"合法地址", "https://m.example.com/invite", false},
		{"缺少协议", "m.example.com/invite", true},
		{"空地址", "", true},
		{"无法解析", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultSize, g.size)
		})
	}
}

func TestGenerator_InviteURL(t *testing.T) {
	g, err := NewGenerator("https://m.example.com/invite?channel=poster")
	require.NoError(t, err)

	t.Run("携带推荐人与租户", func(t *testing.T) {
		u, err := url.Parse(g.InviteURL(42, 7))
		require.NoError(t, err)
		assert.Equal(t, "/invite", u.Path)
		assert.Equal(t, "42", u.Query().Get(ParamReferrer))
		assert.Equal(t, "7", u.Query().Get(ParamTenant))
		assert.Equal(t, "poster", u.Query().Get("channel"))
	})

	t.Run("无租户时省略", func(t *testing.T) {
		u, err := url.Parse(g.InviteURL(42, 0))
		require.NoError(t, err)
		assert.False(t, u.Query().Has(ParamTenant))
	})

	t.Run("多次生成互不影响", func(t *testing.T) {
		g.InviteURL(1, 1)
		assert.Equal(t, "channel=poster", g.baseURL.RawQuery)
	})
}

func TestGenerator_PNG(t *testing.T) {
	g, err := NewGenerator("https://m.example.com/invite", WithSize(128), WithHighRecovery())
	require.NoError(t, err)

	data, err := g.PNG(42, 7)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	dataURL, err := g.DataURL(42, 7)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}
