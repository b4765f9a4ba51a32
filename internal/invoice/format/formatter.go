package format

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultInvoiceNumberTemplate renders numbers such as INV-20260315-000042.
const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}{DD}-{SEQ6}"

var (
	ErrEmptyTemplate   = errors.New("invoice number template is empty")
	ErrInvalidSequence = errors.New("invoice sequence must be positive")

	paddedSeq = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

// FormatInvoiceNumber expands date tokens from issuedAt and {SEQ}/{SEQn} from seq.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrEmptyTemplate
	}
	if seq <= 0 {
		return "", ErrInvalidSequence
	}

	out := strings.NewReplacer(
		"{YYYY}", issuedAt.Format("2006"),
		"{YY}", issuedAt.Format("06"),
		"{MM}", issuedAt.Format("01"),
		"{DD}", issuedAt.Format("02"),
		"{SEQ}", strconv.FormatInt(seq, 10),
	).Replace(template)

	out = paddedSeq.ReplaceAllStringFunc(out, func(token string) string {
		width, err := strconv.Atoi(paddedSeq.FindStringSubmatch(token)[1])
		if err != nil || width <= 0 {
			return token
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice number %q", out)
	}
	return out, nil
}

// DayKey is the sequence bucket for issuedAt; sequences restart every UTC day.
func DayKey(issuedAt time.Time) string {
	return issuedAt.UTC().Format("20060102")
}
