package driven

import "github.com/ericfisherdev/mykeypanel/internal/domain/model"

// Localizer hands out message formatters for a language preference such as an
// HTTP Accept-Language value. Unknown languages fall back to a default.
type Localizer interface {
	Formatter(lang string) model.MessageFormatter
}
