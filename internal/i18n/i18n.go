// internal/i18n/i18n.go
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var instance *I18n
var once sync.Once

// Initialize loads every <locale>.json file under localesPath. The default
// locale must be among them.
func Initialize(localesPath, defaultLang string) error {
	if localesPath == "" {
		localesPath = "./internal/i18n/locales"
	}
	if defaultLang == "" {
		defaultLang = "en"
	}

	var err error
	once.Do(func() {
		instance = &I18n{
			translations: make(map[string]map[string]string),
			defaultLang:  defaultLang,
		}
		err = instance.LoadTranslations(localesPath)
	})
	return err
}

func (i *I18n) LoadTranslations(localesPath string) error {
	files, err := filepath.Glob(filepath.Join(localesPath, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list locale files in %s: %w", localesPath, err)
	}

	loaded := make(map[string]map[string]string, len(files))
	for _, filePath := range files {
		lang := strings.TrimSuffix(filepath.Base(filePath), ".json")

		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", filePath, err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", filePath, err)
		}
		loaded[lang] = translations
	}

	if _, ok := loaded[i.defaultLang]; !ok {
		return fmt.Errorf("default locale %s not found in %s", i.defaultLang, localesPath)
	}

	i.mu.Lock()
	i.translations = loaded
	i.mu.Unlock()
	return nil
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	text, ok := i.translations[lang][key]
	if !ok {
		text, ok = i.translations[i.defaultLang][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// T translates key, returning the key itself before Initialize.
func T(lang, key string, args ...interface{}) string {
	if instance != nil {
		return instance.T(lang, key, args...)
	}
	return key
}

// Supported lists the loaded locales, sorted.
func Supported() []string {
	if instance == nil {
		return []string{"en"}
	}

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	langs := make([]string, 0, len(instance.translations))
	for lang := range instance.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func Default() string {
	if instance == nil {
		return "en"
	}
	return instance.defaultLang
}

// Match picks the loaded locale that best serves an Accept-Language header.
// Ranges are tried by weight; a range matches a locale exactly or on its
// primary language, so "zh" and "zh-Hant" both select zh_TW.
func Match(header string) string {
	supported := Supported()

	best, bestQ := "", 0.0
	for _, part := range strings.Split(header, ",") {
		tag, q := parseLanguageRange(part)
		if tag == "" || q <= bestQ {
			continue
		}
		if locale := lookupLocale(supported, tag); locale != "" {
			best, bestQ = locale, q
		}
	}

	if best == "" {
		return Default()
	}
	return best
}

func parseLanguageRange(part string) (string, float64) {
	fields := strings.Split(part, ";")
	tag := strings.TrimSpace(fields[0])
	if tag == "*" {
		return "", 0
	}

	q := 1.0
	for _, param := range fields[1:] {
		param = strings.TrimSpace(param)
		if value, ok := strings.CutPrefix(param, "q="); ok {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return "", 0
			}
			q = parsed
		}
	}
	return strings.ReplaceAll(tag, "-", "_"), q
}

func lookupLocale(supported []string, tag string) string {
	for _, locale := range supported {
		if strings.EqualFold(locale, tag) {
			return locale
		}
	}

	primary, _, _ := strings.Cut(strings.ToLower(tag), "_")
	for _, locale := range supported {
		localePrimary, _, _ := strings.Cut(strings.ToLower(locale), "_")
		if localePrimary == primary {
			return locale
		}
	}
	return ""
}
