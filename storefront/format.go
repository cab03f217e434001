package storefront

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// commentDate is the layout comments are stored with.
const commentDate = "2006-01-02"

// Formatter renders prices, counts and dates for one locale.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	currency string
}

// NewFormatter falls back to English for tags that do not parse.
func NewFormatter(locale, currency string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	return &Formatter{
		tag:      tag,
		printer:  message.NewPrinter(tag),
		currency: currency,
	}
}

func (f *Formatter) Tag() language.Tag {
	return f.tag
}

func (f *Formatter) Price(amount float64) string {
	return f.currency + f.printer.Sprintf("%.2f", amount)
}

func (f *Formatter) Number(n int) string {
	return f.printer.Sprintf("%d", n)
}

func (f *Formatter) Date(t time.Time) string {
	base, _ := f.tag.Base()

	switch base.String() {
	case "en":
		if region, _ := f.tag.Region(); region.String() == "US" {
			return t.Format("01/02/2006")
		}
		return t.Format("02/01/2006")
	case "de", "nl", "ru", "pl":
		return t.Format("02.01.2006")
	case "ja", "zh", "ko":
		return t.Format("2006/01/02")
	default:
		return t.Format("02/01/2006")
	}
}

// StoredDate formats a comment date, accepting unpadded months and days.
// Values that do not parse are returned unchanged.
func (f *Formatter) StoredDate(value string) string {
	t, err := time.Parse("2006-1-2", value)
	if err != nil {
		return value
	}
	return f.Date(t)
}
