package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are grouped by module prefix (COMMON, OPN, INFRA).
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeConfig             ErrorCode = "COMMON_017"
)

// Sentinel codes used by GetCode.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Opinion-mining codes.
const (
	ErrCodeMalformedTaggerOutput ErrorCode = "OPN_001"
	ErrCodeUnknownToken          ErrorCode = "OPN_002"
	ErrCodeMalformedEntityLine   ErrorCode = "OPN_003"
	ErrCodeTaggerFailed          ErrorCode = "OPN_004"
	ErrCodeClassifierFailed      ErrorCode = "OPN_005"
	ErrCodeModelNotFound         ErrorCode = "OPN_006"
	ErrCodeFeatureExtraction     ErrorCode = "OPN_007"
	ErrCodeDocumentCodec         ErrorCode = "OPN_008"
	ErrCodeDocumentNotFound      ErrorCode = "OPN_009"
	ErrCodeLexiconParse          ErrorCode = "OPN_010"
)

// Infrastructure codes.
const (
	ErrCodeStorage   ErrorCode = "INFRA_001"
	ErrCodeCache     ErrorCode = "INFRA_002"
	ErrCodeMessaging ErrorCode = "INFRA_003"
)

// ErrorCodeHTTPStatus maps codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusBadRequest,
	ErrCodeConfig:             http.StatusInternalServerError,

	ErrCodeMalformedTaggerOutput: http.StatusUnprocessableEntity,
	ErrCodeUnknownToken:          http.StatusUnprocessableEntity,
	ErrCodeMalformedEntityLine:   http.StatusBadRequest,
	ErrCodeTaggerFailed:          http.StatusBadGateway,
	ErrCodeClassifierFailed:      http.StatusBadGateway,
	ErrCodeModelNotFound:         http.StatusServiceUnavailable,
	ErrCodeFeatureExtraction:     http.StatusInternalServerError,
	ErrCodeDocumentCodec:         http.StatusBadRequest,
	ErrCodeDocumentNotFound:      http.StatusNotFound,
	ErrCodeLexiconParse:          http.StatusInternalServerError,

	ErrCodeStorage:   http.StatusServiceUnavailable,
	ErrCodeCache:     http.StatusServiceUnavailable,
	ErrCodeMessaging: http.StatusServiceUnavailable,
}

// ErrorCodeMessage holds the default message for each code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeConfig:             "invalid configuration",

	ErrCodeMalformedTaggerOutput: "malformed tagger output",
	ErrCodeUnknownToken:          "token not present in document",
	ErrCodeMalformedEntityLine:   "malformed entity line",
	ErrCodeTaggerFailed:          "sequence tagger failed",
	ErrCodeClassifierFailed:      "polarity classifier failed",
	ErrCodeModelNotFound:         "model not found",
	ErrCodeFeatureExtraction:     "feature extraction failed",
	ErrCodeDocumentCodec:         "annotation document could not be decoded or encoded",
	ErrCodeDocumentNotFound:      "annotation document not found",
	ErrCodeLexiconParse:          "subjectivity lexicon could not be parsed",

	ErrCodeStorage:   "object storage error",
	ErrCodeCache:     "cache error",
	ErrCodeMessaging: "messaging error",
}

// HTTPStatusForCode returns the HTTP status for code.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of code.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
