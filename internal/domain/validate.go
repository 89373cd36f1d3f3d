package domain

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLength is counted in characters after trimming.
	MaxTitleLength = 100

	FieldTitle = "title"
	FieldURL   = "url"
)

// Validate trims and checks the input the same way the bookmark form does.
// It returns the normalized input or a *ValidationError for the first bad field.
func (in Input) Validate() (Input, error) {
	out := Input{
		Title: strings.TrimSpace(in.Title),
		URL:   strings.TrimSpace(in.URL),
	}

	switch n := utf8.RuneCountInString(out.Title); {
	case n == 0:
		return Input{}, &ValidationError{Field: FieldTitle, Message: "Title is required"}
	case n > MaxTitleLength:
		return Input{}, &ValidationError{Field: FieldTitle, Message: "Title too long"}
	}

	if err := validateURL(out.URL); err != nil {
		return Input{}, err
	}

	return out, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || raw == "" || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: FieldURL, Message: "Enter valid URL"}
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return &ValidationError{Field: FieldURL, Message: "Must start with http:// or https://"}
	}

	return nil
}
