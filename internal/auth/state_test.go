package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/auth"
	"taskdash/internal/model"
)

func TestSignAndVerifyState(t *testing.T) {
	tests := map[string]struct {
		secret       string
		verifySecret string
		flow         string
		email        string
		ttl          time.Duration
		expSignErr   bool
		expVerifyErr bool
	}{
		"A login state round-trips": {
			secret:       "s3cret",
			verifySecret: "s3cret",
			flow:         auth.FlowLogin,
		},

		"A drive state carries the email": {
			secret:       "s3cret",
			verifySecret: "s3cret",
			flow:         auth.FlowDrive,
			email:        "user@example.com",
		},

		"A tampered secret fails verification": {
			secret:       "s3cret",
			verifySecret: "other",
			flow:         auth.FlowLogin,
			expVerifyErr: true,
		},

		"An expired state fails verification": {
			secret:       "s3cret",
			verifySecret: "s3cret",
			flow:         auth.FlowLogin,
			ttl:          -time.Minute,
			expVerifyErr: true,
		},

		"An empty secret cannot sign": {
			flow:       auth.FlowLogin,
			expSignErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			state, err := auth.SignState(test.secret, test.flow, test.email, test.ttl)

			if test.expSignErr {
				assert.ErrorIs(err, model.ErrNotValid)
				return
			}
			require.NoError(err)

			claims, err := auth.VerifyState(test.verifySecret, state)

			if test.expVerifyErr {
				assert.ErrorIs(err, model.ErrOAuth)
				return
			}
			require.NoError(err)
			assert.Equal(test.flow, claims.Flow)
			assert.Equal(test.email, claims.Email)
		})
	}
}

func TestVerifyStateGarbage(t *testing.T) {
	_, err := auth.VerifyState("s3cret", "not-a-token")
	assert.ErrorIs(t, err, model.ErrOAuth)
}
