package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nijaru/vidqa/errors"
)

const MaxQuestionLength = 2000

type Validator struct {
	allowedHosts []string
}

// NewValidator returns a validator. With no hosts given any http(s) host
// is accepted for remote fetches.
func NewValidator(allowedHosts ...string) *Validator {
	return &Validator{allowedHosts: allowedHosts}
}

// ValidateURL performs URL validation
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}

	parsedURL, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	// Protocol validation
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	host := parsedURL.Hostname()
	if host == "" {
		return errors.InvalidInput(op, nil, "URL must have a host")
	}

	if len(v.allowedHosts) > 0 && !v.hostAllowed(host) {
		return errors.InvalidInput(op, nil, "URL host is not supported")
	}

	// YouTube watch URLs need a video id
	if strings.HasSuffix(host, "youtube.com") && parsedURL.Path == "/watch" {
		if parsedURL.Query().Get("v") == "" {
			return errors.InvalidInput(op, nil, "YouTube URL must contain a valid video ID")
		}
	}

	return nil
}

func (v *Validator) hostAllowed(host string) bool {
	for _, allowed := range v.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (v *Validator) ValidateQuestion(question string) error {
	const op = "Validator.ValidateQuestion"

	if strings.TrimSpace(question) == "" {
		return errors.InvalidInput(op, nil, "No question provided")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return errors.InvalidInput(op, nil, "Question is too long")
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces name to a safe flat file name: path separators
// become spaces, whitespace runs become underscores, anything outside
// [A-Za-z0-9_.-] is dropped and leading dots or underscores are trimmed.
// The result may be empty.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, "._")
}
