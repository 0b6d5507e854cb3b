package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetch represents network, timeout and non-2xx errors during page or image retrieval
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParse represents HTML parsing errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypePersistence represents storage write failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeBrowser represents headless browser failures
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type    ErrorType
	URL     string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.URL != "" && e.Err != nil {
		return fmt.Sprintf("[%s] %s %s: %v", e.Type, e.Message, e.URL, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	if e.URL != "" {
		return fmt.Sprintf("[%s] %s %s", e.Type, e.Message, e.URL)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// New creates a new ScrapeError
func New(errType ErrorType, url, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetch creates a new fetch error; the URL is part of the message contract
func NewFetch(url string, err error) *ScrapeError {
	return New(ErrorTypeFetch, url, "failed to fetch page", err)
}

// NewParse creates a new parse error
func NewParse(message string, err error) *ScrapeError {
	return New(ErrorTypeParse, "", message, err)
}

// NewPersistence creates a new persistence error
func NewPersistence(message string, err error) *ScrapeError {
	return New(ErrorTypePersistence, "", message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(url, message string, err error) *ScrapeError {
	return New(ErrorTypeBrowser, url, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is a ScrapeError of the given type
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type == errType
	}
	return false
}
