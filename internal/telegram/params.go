package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// Params are the form fields of one Bot API call. Every setter fixes the
// wire form of its value kind; empty and zero values are left out.
type Params map[string]string

// Set passes a string through unchanged.
func (p Params) Set(key, value string) Params {
	tgbotapi.Params(p).AddNonEmpty(key, value)
	return p
}

// SetInt writes a decimal integer.
func (p Params) SetInt(key string, value int64) Params {
	tgbotapi.Params(p).AddNonZero64(key, value)
	return p
}

// SetBool writes "true"; false is the Bot API default and is omitted.
func (p Params) SetBool(key string, value bool) Params {
	tgbotapi.Params(p).AddBool(key, value)
	return p
}

// SetEnum writes the value string of an enum.
func (p Params) SetEnum(key string, value fmt.Stringer) Params {
	if value == nil {
		return p
	}
	tgbotapi.Params(p).AddNonEmpty(key, value.String())
	return p
}

// SetObject writes a struct, slice or map as a JSON object.
func (p Params) SetObject(key string, value interface{}) error {
	return errors.Wrapf(tgbotapi.Params(p).AddInterface(key, value), "encode %s", key)
}

// Int reads back an integer field, mostly for tests and logging.
func (p Params) Int(key string) (int64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}
