// Package phone converts between the WhatsApp chat id form (62812...@c.us)
// and the local form (0812...) that guest records are stored with.
package phone

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country code.
const DefaultRegion = "ID"

const (
	chatSuffix      = "@c.us"
	indonesiaPrefix = "62"
)

var ErrInvalid = errors.New("invalid phone number")

// Number is a parsed phone number in both representations.
type Number struct {
	Local         string // 081234567890
	International string // 6281234567890
}

// Parse accepts local (0812...), international (62812... or +62812...) and
// chat id forms. Digits without a 0, 62 or + prefix are read as an Indonesian
// national number.
func Parse(raw string) (Number, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, chatSuffix)
	s = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return Number{}, ErrInvalid
	}

	if strings.HasPrefix(s, indonesiaPrefix) {
		s = "+" + s
	}

	pn, err := phonenumbers.Parse(s, DefaultRegion)
	if err != nil {
		return Number{}, errors.Join(ErrInvalid, err)
	}
	national := strconv.FormatUint(pn.GetNationalNumber(), 10)
	country := strconv.Itoa(int(pn.GetCountryCode()))
	return Number{
		Local:         "0" + national,
		International: country + national,
	}, nil
}

// LocalFromChatID maps "6281234567890@c.us" to "081234567890".
func LocalFromChatID(chatID string) (string, error) {
	n, err := Parse(chatID)
	if err != nil {
		return "", err
	}
	return n.Local, nil
}

// ChatID maps a stored phone number to the chat id used for outbound sends.
func ChatID(stored string) (string, error) {
	n, err := Parse(stored)
	if err != nil {
		return "", err
	}
	return n.International + chatSuffix, nil
}
