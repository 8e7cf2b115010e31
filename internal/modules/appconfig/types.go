package appconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags how a config row's string value is interpreted.
type ValueType string

const (
	TypeString   ValueType = "STRING"
	TypeNumber   ValueType = "NUMBER"
	TypeBoolean  ValueType = "BOOLEAN"
	TypePassword ValueType = "PASSWORD"
	TypeOtpList  ValueType = "VIPOTPS"
)

const (
	KeyEnabled              = "enabled"
	KeyAllowOrders          = "allowOrders"
	KeyAdminUpgradePassword = "adminUpgradePassword"
	KeyVipOtps              = "vipOtps"
)

var (
	ErrUnknownKey    = errors.New("config key does not exist")
	ErrProtectedType = errors.New("config key cannot be modified directly")
	ErrTypeMismatch  = errors.New("config key has a different type")
	ErrInvalidValue  = errors.New("config value does not match its type")
	ErrOtpExhausted  = errors.New("could not generate a unique code")
)

// Setting is one declared config key.
type Setting struct {
	Key     string
	Type    ValueType
	Default string
}

// Schema lists every key the store keeps. adminPassword seeds adminUpgradePassword and is hashed
// before it is stored.
func Schema(adminPassword string) []Setting {
	return []Setting{
		{Key: KeyEnabled, Type: TypeBoolean, Default: "true"},
		{Key: KeyAllowOrders, Type: TypeBoolean, Default: "false"},
		{Key: KeyAdminUpgradePassword, Type: TypePassword, Default: adminPassword},
		{Key: KeyVipOtps, Type: TypeOtpList, Default: ""},
	}
}

// Sensitive reports whether values of this type are hidden from non-admins.
func (t ValueType) Sensitive() bool {
	return t == TypePassword || t == TypeOtpList
}

// Cast converts a stored string into its typed form. Password and otp-list values have no
// public form and yield nil.
func (t ValueType) Cast(raw string) interface{} {
	switch t {
	case TypeBoolean:
		return raw == "true" || raw == "True"
	case TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil
		}
		return f
	case TypeString:
		return raw
	}
	return nil
}

// Encode checks that v fits the type and returns its stored string form.
func (t ValueType) Encode(v interface{}) (string, error) {
	switch t {
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case TypeNumber:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
	case TypeString, TypePassword:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeOtpList:
		return "", ErrProtectedType
	}
	return "", fmt.Errorf("%w: expected %s", ErrInvalidValue, t)
}
