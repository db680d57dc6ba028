package worker

import (
	"fmt"
	"log"
	"strings"
)

// Notifier abstracts the delivery channel (email, Slack, SMS, ...).
type Notifier interface {
	Notify(subject, message string) error
}

// ConsoleNotifier logs notifications; the default until a real channel is
// wired in deployment.
type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (c *ConsoleNotifier) Notify(subject, message string) error {
	log.Printf("[notify] %s :: %s\n", subject, message)
	return nil
}

// FormatAmount renders minor units as a major-unit string,
// e.g. 20000 "usd" -> "200.00 USD".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
