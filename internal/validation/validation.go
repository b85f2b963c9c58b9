package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"tinylink/internal/apperrors"
)

const maxURLLength = 2048

const (
	msgURLRequired  = "URL is required"
	msgURLInvalid   = "Invalid URL format"
	msgCodeRequired = "Code is required"
	msgCodeInvalid  = "Code must be 6-8 alphanumeric characters"
)

var (
	validate = validator.New()

	schemePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	localhostPattern = regexp.MustCompile(`(?i)^https?://(localhost|127\.0\.0\.1|0\.0\.0\.0)(:\d+)?([/?#]|$)`)
)

// ValidateURL 校验目标 URL，返回规范化后的地址
// 未带协议时补全 https://，仅接受 http/https；本地地址放宽校验
func ValidateURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", apperrors.Validation(msgURLRequired)
	}
	if len(candidate) > maxURLLength || strings.ContainsAny(candidate, " \t\r\n") {
		return "", apperrors.Validation(msgURLInvalid)
	}

	if scheme := schemePattern.FindString(candidate); scheme != "" {
		switch strings.ToLower(strings.TrimSuffix(scheme, "://")) {
		case "http", "https":
		default:
			return "", apperrors.Validation(msgURLInvalid)
		}
	} else {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return "", apperrors.Validation(msgURLInvalid)
	}

	if localhostPattern.MatchString(candidate) {
		return candidate, nil
	}

	if !validHost(parsed.Hostname()) {
		return "", apperrors.Validation(msgURLInvalid)
	}
	return candidate, nil
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if validate.Var(host, "ip") == nil {
		return true
	}
	return validate.Var(host, "fqdn") == nil
}

// ValidateCode 校验自定义短码：6-8 位字母数字
func ValidateCode(code string) error {
	if code == "" {
		return apperrors.Validation(msgCodeRequired)
	}
	if !IsCodeShape(code) {
		return apperrors.Validation(msgCodeInvalid)
	}
	return nil
}

// IsCodeShape 判断字符串是否具有短码的形状
func IsCodeShape(code string) bool {
	return validate.Var(code, "required,alphanum,min=6,max=8") == nil
}
