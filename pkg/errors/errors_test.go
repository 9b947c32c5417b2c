package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.ErrCodeInternal, "unexpected failure"},
		{"malformed tagger output", errors.ErrCodeMalformedTaggerOutput, "data line has no label"},
		{"unknown token", errors.ErrCodeUnknownToken, "w42 not in index"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeMalformedEntityLine, "expected 3 fields")
	assert.Equal(t, "[OPN_003] expected 3 fields", ae.Error())

	withDetail := ae.WithDetail("line 4")
	assert.Equal(t, "[OPN_003] expected 3 fields: line 4", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	wrapped := errors.Wrap(stderrors.New("exit status 1"), errors.ErrCodeTaggerFailed, "crf_test failed")
	assert.Equal(t, "[OPN_004] crf_test failed: exit status 1", wrapped.Error())
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "ignored"))
}

func TestWrap_UnknownCodeKeepsOriginal(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeUnknownToken, "w9 missing")
	outer := errors.Wrap(inner, errors.CodeUnknown, "matching failed")
	assert.Equal(t, errors.ErrCodeUnknownToken, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestWithNilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_TraversesFmtWrapping(t *testing.T) {
	t.Parallel()

	base := errors.New(errors.ErrCodeTaggerFailed, "boom")
	err := fmt.Errorf("layer target: %w", base)

	assert.True(t, errors.IsCode(err, errors.ErrCodeTaggerFailed))
	assert.False(t, errors.IsCode(err, errors.ErrCodeClassifierFailed))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeTaggerFailed))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeModelNotFound, errors.GetCode(errors.New(errors.ErrCodeModelNotFound, "x")))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("doc")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeUnknownToken, "w1")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("wrapped: %w", errors.New(errors.ErrCodeDocumentNotFound, "k"))))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Codes
// ─────────────────────────────────────────────────────────────────────────────

func TestHTTPStatusForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, errors.HTTPStatusForCode(errors.ErrCodeDocumentNotFound))
	assert.Equal(t, http.StatusBadGateway, errors.HTTPStatusForCode(errors.ErrCodeTaggerFailed))
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatusForCode(errors.ErrorCode("NOPE_1")))
	assert.True(t, errors.IsClientError(errors.ErrCodeDocumentCodec))
	assert.False(t, errors.IsClientError(errors.ErrCodeInternal))
}

func TestEveryCodeHasAMessage(t *testing.T) {
	t.Parallel()

	for code := range errors.ErrorCodeHTTPStatus {
		assert.NotEqual(t, "unknown error", errors.DefaultMessageForCode(code), "code %s", code)
	}
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OPN", errors.ModuleForCode(errors.ErrCodeTaggerFailed))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.ErrCodeInternal))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(""))
}
