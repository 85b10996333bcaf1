package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/GophKeychain/internal/models"
)

// ErrInputClosed is returned when the input ends in the middle of a prompt.
var ErrInputClosed = errors.New("input closed")

var kindAliases = map[string]models.Kind{
	"generic":  models.KindGeneric,
	"password": models.KindPassword,
	"internet": models.KindInternetPassword,
	"web":      models.KindInternetPassword,
	"mobile":   models.KindMobileAppPassword,
	"app":      models.KindMobileAppPassword,
}

// ParseKind accepts a short alias ("generic", "password", "internet",
// "mobile") or a full kind name.
func ParseKind(s string) (models.Kind, error) {
	s = strings.TrimSpace(s)
	if k, ok := kindAliases[strings.ToLower(s)]; ok {
		return k, nil
	}
	if k := models.Kind(s); k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// Prompter asks for item fields line by line.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// PromptForItem interactively builds an item of any kind.
func (p *Prompter) PromptForItem() (models.Item, error) {
	answer, err := p.Ask("Item kind (generic/password/internet/mobile): ")
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(answer)
	if err != nil {
		return nil, err
	}

	var fields []string
	switch kind {
	case models.KindGeneric:
		fields = []string{"Description: ", "Value: "}
	case models.KindPassword:
		fields = []string{"Identifier: ", "Description (optional): ", "Password: "}
	case models.KindInternetPassword:
		fields = []string{"Account name: ", "Website: ", "Description (optional): ", "Password: "}
	case models.KindMobileAppPassword:
		fields = []string{"Application name: ", "Account name: ", "Description (optional): ", "Password: "}
	}
	vals := make([]string, len(fields))
	for i, q := range fields {
		if vals[i], err = p.Ask(q); err != nil {
			return nil, err
		}
	}

	level, err := p.askAccessLevel()
	if err != nil {
		return nil, err
	}
	opts := []models.Option{models.WithAccessLevel(level)}

	switch kind {
	case models.KindGeneric:
		return models.NewGenericItem(vals[0], vals[1], opts...)
	case models.KindPassword:
		return models.NewPasswordItem(vals[2], vals[0], withOptionalDescription(opts, vals[1])...)
	case models.KindInternetPassword:
		return models.NewInternetPasswordItem(vals[3], vals[0], vals[1], withOptionalDescription(opts, vals[2])...)
	default:
		return models.NewMobileAppPasswordItem(vals[3], vals[0], vals[1], withOptionalDescription(opts, vals[2])...)
	}
}

func (p *Prompter) askAccessLevel() (models.AccessLevel, error) {
	answer, err := p.Ask(fmt.Sprintf("Access level [%s]: ", models.DefaultAccessLevel))
	if err != nil {
		return 0, err
	}
	if answer == "" {
		return models.DefaultAccessLevel, nil
	}
	return models.ParseAccessLevel(answer)
}

func withOptionalDescription(opts []models.Option, description string) []models.Option {
	if description == "" {
		return opts
	}
	return append(opts, models.WithDescription(description))
}
