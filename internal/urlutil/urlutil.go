// Package urlutil validates submitted URLs and reduces them to their site root.
package urlutil

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// MaxLength is the longest accepted input, counted in characters.
const MaxLength = 255

// Validation messages, in the order Validate reports them.
const (
	ErrTooLong  = "URL exceeds 255 characters"
	ErrInvalid  = "Invalid URL"
	ErrRequired = "URL is required"
)

var hostLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Validate returns every problem found with input. An empty result means the
// input can be passed to Normalize.
func Validate(input string) []string {
	var errs []string
	if utf8.RuneCountInString(input) > MaxLength {
		errs = append(errs, ErrTooLong)
	}
	if !IsValid(input) {
		errs = append(errs, ErrInvalid)
	}
	if input == "" {
		errs = append(errs, ErrRequired)
	}
	return errs
}

// IsValid reports whether input is an absolute http(s) URL with a usable host.
// Internationalized host names are accepted and checked in their ASCII form.
func IsValid(input string) bool {
	if input == "" || strings.ContainsAny(input, " \t\r\n") {
		return false
	}
	u, err := url.Parse(input)
	if err != nil || !u.IsAbs() || u.Opaque != "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.HasSuffix(u.Host, ":") {
		return false
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return false
		}
	}
	return validHost(u.Hostname())
}

func validHost(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil || strings.EqualFold(host, "localhost") {
		return true
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return false
	}
	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !hostLabel.MatchString(label) {
			return false
		}
	}
	tld := labels[len(labels)-1]
	_, err = strconv.Atoi(tld)
	return err != nil
}

// Normalize reduces input to scheme://host[:port], dropping userinfo, path,
// query and fragment. Host case is preserved, a trailing root dot is dropped
// and the port is rewritten in canonical decimal form. Input is expected to
// have passed Validate; unparsable input is returned unchanged.
func Normalize(input string) string {
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	return u.Scheme + "://" + hostPort(u)
}

func hostPort(u *url.URL) string {
	host := strings.TrimSuffix(u.Hostname(), ".")
	port := u.Port()
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	if n, err := strconv.Atoi(port); err == nil {
		port = strconv.Itoa(n)
	}
	return net.JoinHostPort(host, port)
}
