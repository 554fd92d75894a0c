// Package i18n provides localized key description templates backed by
// golang.org/x/text message catalogs.
package i18n

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Localizer = (*Catalog)(nil)

// Bit lengths are substituted with %s: the x/text printer would otherwise add
// digit grouping ("3,072").
var translations = map[language.Tag]map[model.MessageID]string{
	language.English: {
		model.MsgKeyTypeRSABits:         "RSA %s-bit",
		model.MsgKeyTypeDSABits:         "DSA %s-bit",
		model.MsgKeyTypeECBits:          "EC %s-bit",
		model.MsgKeyTypeED25519:         "Ed25519",
		model.MsgKeyTypeUnknown:         "unknown type",
		model.MsgKeyTypeUnknownStrength: "%s (unknown strength)",
		model.MsgKeyAttributeEncrypted:  "encrypted",
		model.MsgKeyAttributeHardware:   "hardware-backed (%s)",
	},
	language.German: {
		model.MsgKeyTypeRSABits:         "RSA %s-Bit",
		model.MsgKeyTypeDSABits:         "DSA %s-Bit",
		model.MsgKeyTypeECBits:          "EC %s-Bit",
		model.MsgKeyTypeED25519:         "Ed25519",
		model.MsgKeyTypeUnknown:         "unbekannter Typ",
		model.MsgKeyTypeUnknownStrength: "%s (unbekannte Stärke)",
		model.MsgKeyAttributeEncrypted:  "verschlüsselt",
		model.MsgKeyAttributeHardware:   "Hardware-Schlüssel (%s)",
	},
}

// Catalog resolves language preferences to message formatters.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

// NewCatalog builds the message catalog. defaultLang is used when a request
// names no supported language; it must itself be supported.
func NewCatalog(defaultLang string) (*Catalog, error) {
	parsed, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse default language %q: %w", defaultLang, err)
	}
	base, _ := parsed.Base()

	var (
		def   language.Tag
		found bool
		other []language.Tag
	)
	for tag := range translations {
		if b, _ := tag.Base(); b == base && !found {
			def, found = tag, true
			continue
		}
		other = append(other, tag)
	}
	if !found {
		return nil, fmt.Errorf("default language %q has no translations", defaultLang)
	}
	sort.Slice(other, func(i, j int) bool { return other[i].String() < other[j].String() })

	b := catalog.NewBuilder(catalog.Fallback(def))
	tags := append([]language.Tag{def}, other...)
	for _, tag := range tags {
		for id, msg := range translations[tag] {
			if err := b.SetString(tag, string(id), msg); err != nil {
				return nil, fmt.Errorf("set %s message %s: %w", tag, id, err)
			}
		}
	}

	return &Catalog{
		builder: b,
		tags:    tags,
		matcher: language.NewMatcher(tags),
	}, nil
}

// Languages returns the supported languages, default first.
func (c *Catalog) Languages() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Formatter returns a formatter for an Accept-Language style preference list.
// An empty or unparsable value selects the default language.
func (c *Catalog) Formatter(lang string) model.MessageFormatter {
	prefs, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(prefs) == 0 {
		return c.formatterFor(c.tags[0])
	}
	_, idx, _ := c.matcher.Match(prefs...)
	return c.formatterFor(c.tags[idx])
}

func (c *Catalog) formatterFor(tag language.Tag) *formatter {
	return &formatter{printer: message.NewPrinter(tag, message.Catalog(c.builder))}
}

type formatter struct {
	printer *message.Printer
}

func (f *formatter) Format(id model.MessageID, args ...any) string {
	plain := make([]any, len(args))
	for i, arg := range args {
		if n, ok := arg.(int); ok {
			plain[i] = strconv.Itoa(n)
			continue
		}
		plain[i] = arg
	}
	return f.printer.Sprintf(string(id), plain...)
}
