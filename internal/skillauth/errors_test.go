package skillauth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

func TestReason(t *testing.T) {
	assert.Equal(t, "", skillauth.Reason(nil))
	assert.Equal(t, "identity_mismatch", skillauth.Reason(skillauth.ErrIdentityMismatch))
	assert.Equal(t, "certificate_unavailable",
		skillauth.Reason(fmt.Errorf("%w: dial tcp: timeout", skillauth.ErrCertificateUnavailable)))
	assert.Equal(t, "io_error", skillauth.Reason(skillauth.ErrIO))
	assert.Equal(t, "internal", skillauth.Reason(errors.New("boom")))
}

func TestMessage_HidesWrappedDetail(t *testing.T) {
	err := fmt.Errorf("%w: x509: malformed tbs certificate", skillauth.ErrInvalidCertificate)
	assert.Equal(t, "invalid signing certificate", skillauth.Message(err))
	assert.Equal(t, "request validation failed", skillauth.Message(errors.New("boom")))
}
