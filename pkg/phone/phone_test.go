package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "international", raw: "+5511999999999", want: true},
		{name: "bare national", raw: "11988888888", want: true},
		{name: "formatted national", raw: "(11) 98888-8888", want: true},
		{name: "formatted international", raw: "+55 (11) 98888-8888", want: true},
		{name: "eight digits", raw: "12345678", want: true},
		{name: "fifteen digits", raw: "+123456789012345", want: true},
		{name: "too short", raw: "123", want: false},
		{name: "seven digits", raw: "1234567", want: false},
		{name: "sixteen digits", raw: "1234567890123456", want: false},
		{name: "empty", raw: "", want: false},
		{name: "letters only", raw: "abc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.raw))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "already international", raw: "+5511999999999", want: "+5511999999999"},
		{name: "eleven digit mobile", raw: "11988888888", want: "+5511988888888"},
		{name: "ten digit landline", raw: "1133334444", want: "+551133334444"},
		{name: "punctuated national", raw: "(11) 98888-8888", want: "+5511988888888"},
		{name: "full number without plus", raw: "5511988888888", want: "+5511988888888"},
		{name: "short number", raw: "12345678", want: "+12345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.raw))
		})
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	for _, raw := range []string{"+5511999999999", "11988888888", "1133334444", "5511988888888", "12345678"} {
		once := Format(raw)
		assert.Equal(t, once, Format(once), raw)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "5511988888888", Digits("+55 (11) 98888-8888"))
	assert.Equal(t, "", Digits("abc"))
}
