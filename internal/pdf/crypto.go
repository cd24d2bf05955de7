package pdf

import (
	"errors"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Credentials contains the passwords for an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// configuration returns a pdfcpu configuration carrying the passwords. A nil
// receiver yields the default configuration.
func (c *Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if c != nil {
		conf.UserPW = c.UserPassword
		conf.OwnerPW = c.OwnerPassword
	}
	return conf
}

// ErrEncrypted is returned when a document needs a password that was not
// supplied or was wrong.
var ErrEncrypted = errors.New("pdf is password protected")

// IsPasswordError checks if an error is related to password or encryption
// issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEncrypted) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
