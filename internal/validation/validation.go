// Package validation provides input validation for the SafeGuard API.
package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxUnitsPerPurchase bounds a single transaction. Anything above this is
// almost certainly a data-entry error rather than a real retail sale.
const MaxUnitsPerPurchase = 50.0

// MaxVolumeMLPerPurchase bounds a single transaction's volume.
const MaxVolumeMLPerPurchase = 10000

var (
	identityRegex = regexp.MustCompile(`^\d{12}$`)
	phoneRegex    = regexp.MustCompile(`^\d{10}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IdentityNumber checks the national identity number format (12 digits).
func IdentityNumber(id string) error {
	if id == "" {
		return fmt.Errorf("identity number is required")
	}
	if !identityRegex.MatchString(id) {
		return fmt.Errorf("identity number must be exactly 12 digits")
	}
	return nil
}

// Age checks that a person is of legal purchase age.
func Age(age int) error {
	if age < 18 {
		return fmt.Errorf("person must be at least 18 years old")
	}
	if age > 120 {
		return fmt.Errorf("invalid age")
	}
	return nil
}

// Phone checks an optional phone number (10 digits when present).
func Phone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone number must be exactly 10 digits")
	}
	return nil
}

// Units checks a standard-drink unit count for a single purchase.
func Units(units float64) error {
	if units <= 0 {
		return fmt.Errorf("units must be greater than 0")
	}
	if units > MaxUnitsPerPurchase {
		return fmt.Errorf("units too high for a single transaction")
	}
	return nil
}

// VolumeML checks a purchase volume in millilitres.
func VolumeML(volumeML int) error {
	if volumeML <= 0 {
		return fmt.Errorf("volume must be greater than 0")
	}
	if volumeML > MaxVolumeMLPerPurchase {
		return fmt.Errorf("volume too high for a single transaction")
	}
	return nil
}

// SanitizeString trims whitespace, strips null bytes, and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}
