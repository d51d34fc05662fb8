package i18n

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := Initialize("./locales", "en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestLocalesShareKeys(t *testing.T) {
	instance.mu.RLock()
	defer instance.mu.RUnlock()

	en := instance.translations["en"]
	require.NotEmpty(t, en)
	for lang, translations := range instance.translations {
		for key := range en {
			assert.Contains(t, translations, key, "locale %s", lang)
		}
	}
}

func TestT(t *testing.T) {
	assert.Equal(t, "A valid admin key is required for this action.", T("en", KeyAuthAdminKeyRequired))
	assert.Equal(t, "此操作需要有效的管理員金鑰。", T("zh_TW", KeyAuthAdminKeyRequired))
	assert.Equal(t, T("en", KeyAuthRequired), T("fr", KeyAuthRequired))
	assert.Equal(t, "no.such.key", T("en", "no.such.key"))
}

func TestMatch(t *testing.T) {
	assert.Equal(t, []string{"en", "zh_TW"}, Supported())

	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"zh-TW,zh;q=0.9,en;q=0.8", "zh_TW"},
		{"zh-Hant", "zh_TW"},
		{"en;q=0.5,zh;q=0.8", "zh_TW"},
		{"fr-FR,fr;q=0.9", "en"},
		{"fr-FR,en-GB;q=0.7", "en"},
		{"*", "en"},
		{"zh;q=bogus", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.header))
		})
	}
}
