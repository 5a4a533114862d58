package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var bundle *i18n.Bundle

// Init loads the translation bundle for the given language tag.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle = i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	return nil
}

// NewLocalizer creates a localizer that tries langs in order, then the bundle default.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, "en")
}

// localize reports false when no language in the chain has the message. A
// message found only in the bundle default still counts as found.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) (string, bool) {
	s, err := localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			slog.Warn("localize message", "id", cfg.MessageID, "error", err)
		}
	}
	return s, s != ""
}

// T translates a message by ID. A missing message is returned as its ID.
func T(ctx context.Context, msgID string) string {
	return Td(ctx, msgID, nil)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	s, ok := localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
	if !ok {
		slog.Warn("missing translation", "id", msgID)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID. The count is available to the
// template as .Count.
func Tp(ctx context.Context, msgID string, count int) string {
	s, ok := localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if !ok {
		slog.Warn("missing translation", "id", msgID)
		return msgID
	}
	return s
}

// ErrorMessage returns the user-facing text for an error code. Codes without
// a translation use fallback, or the code itself when fallback is empty.
func ErrorMessage(ctx context.Context, code string, data map[string]any, fallback string) string {
	if s, ok := localize(ctx, &i18n.LocalizeConfig{MessageID: code, TemplateData: data}); ok {
		return s
	}
	if fallback != "" {
		return fallback
	}
	return code
}
