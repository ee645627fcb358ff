package metrics

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	LoadingLabel = "Loading..."
	NoDataLabel  = "No data yet"
)

var printer = message.NewPrinter(language.English)

func FormatPeso(amount float64) string {
	return printer.Sprintf("₱%.2f", amount)
}

func ItemsLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return printer.Sprintf("%d items", n)
}

// StatLabel is the pill text of a dashboard card.
func StatLabel(loading bool, value string) string {
	switch {
	case loading:
		return LoadingLabel
	case value != "":
		return value
	}
	return NoDataLabel
}

func pesoOrEmpty(amount float64) string {
	if amount > 0 {
		return FormatPeso(amount)
	}
	return ""
}

func itemsOrEmpty(n int) string {
	if n > 0 {
		return ItemsLabel(n)
	}
	return ""
}

// DisplayName greets the user by the local part of their email.
func DisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local = strings.TrimSpace(local); local != "" {
		return local
	}
	return "there"
}
