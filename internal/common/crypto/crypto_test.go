package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAES(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"AES-128", "1234567890123456", false},
		{"AES-192", "123456789012345678901234", false},
		{"AES-256", "12345678901234567890123456789012", false},
		{"空密钥", "", true},
		{"长度不合法", "short", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAES(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeySize)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestAES_EncryptDecrypt(t *testing.T) {
	c, err := NewAES("12345678901234567890123456789012")
	require.NoError(t, err)

	t.Run("往返一致", func(t *testing.T) {
		for _, plain := range []string{"o6_bmjrPTlm6_2sgVt7hMZOPfL2M", "张三 6222020200112233445"} {
			enc, err := c.Encrypt(plain)
			require.NoError(t, err)
			assert.NotEqual(t, plain, enc)

			dec, err := c.Decrypt(enc)
			require.NoError(t, err)
			assert.Equal(t, plain, dec)
		}
	})

	t.Run("每次加密结果不同", func(t *testing.T) {
		a, err := c.Encrypt("same")
		require.NoError(t, err)
		b, err := c.Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("空串不加密", func(t *testing.T) {
		enc, err := c.Encrypt("")
		require.NoError(t, err)
		assert.Empty(t, enc)
		dec, err := c.Decrypt("")
		require.NoError(t, err)
		assert.Empty(t, dec)
	})

	t.Run("非法密文", func(t *testing.T) {
		_, err := c.Decrypt("not-base64!!!")
		assert.Error(t, err)

		_, err = c.Decrypt("YWJj")
		assert.ErrorIs(t, err, ErrCiphertextShort)
	})

	t.Run("密钥不匹配", func(t *testing.T) {
		enc, err := c.Encrypt("secret")
		require.NoError(t, err)

		other, err := NewAES("abcdefghijklmnopqrstuvwxyz123456")
		require.NoError(t, err)
		_, err = other.Decrypt(enc)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestMaskAccount(t *testing.T) {
	tests := []struct {
		name    string
		account string
		keep    int
		want    string
	}{
		{"银行卡", "6222020200112233445", 4, "6222****3445"},
		{"中文户名", "张三丰", 1, "张****丰"},
		{"过短全部遮盖", "abc", 2, "***"},
		{"空串", "", 4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskAccount(tt.account, tt.keep))
		})
	}
}
