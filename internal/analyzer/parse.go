package analyzer

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxFieldLength caps every extracted field.
const MaxFieldLength = 255

// Page holds the fields extracted from an HTML document.
type Page struct {
	Title       string
	H1          string
	Description string
}

// Parse extracts the first <title>, the first <h1> and the content of the
// description meta tag. Missing elements yield empty strings.
func Parse(body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	var description string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		description, _ = s.Attr("content")
		return false
	})

	return Page{
		Title:       clean(doc.Find("title").First().Text()),
		H1:          clean(doc.Find("h1").First().Text()),
		Description: clean(description),
	}, nil
}

func clean(s string) string {
	return Truncate(strings.TrimSpace(s), MaxFieldLength)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
