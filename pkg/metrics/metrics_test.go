// Copyright (c) 2025 Cue Protocol
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@cueprotocol.io for commercial licensing options.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuthOperation(t *testing.T) {
	Enable()
	defer Enable()

	before := testutil.ToFloat64(AuthOperationsTotal.WithLabelValues(ActionRegister, StatusSuccess))
	RecordAuthOperation(ActionRegister, StatusSuccess, 0.05)
	after := testutil.ToFloat64(AuthOperationsTotal.WithLabelValues(ActionRegister, StatusSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordAuthError(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(AuthErrorsTotal.WithLabelValues(ActionLogin, "verification_failed"))
	RecordAuthError(ActionLogin, "verification_failed")
	after := testutil.ToFloat64(AuthErrorsTotal.WithLabelValues(ActionLogin, "verification_failed"))
	assert.Equal(t, before+1, after)
}

func TestRecordSweep(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(ChallengesSweptTotal)
	RecordSweep(3, 7)
	assert.Equal(t, before+3, testutil.ToFloat64(ChallengesSweptTotal))
	assert.Equal(t, float64(7), testutil.ToFloat64(ChallengesPending))
}

func TestRecordRewardGrant(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(RewardGrantsTotal.WithLabelValues(StatusSuccess))
	RecordRewardGrant(true)
	assert.Equal(t, before+1, testutil.ToFloat64(RewardGrantsTotal.WithLabelValues(StatusSuccess)))

	beforeErr := testutil.ToFloat64(RewardGrantsTotal.WithLabelValues(StatusError))
	RecordRewardGrant(false)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(RewardGrantsTotal.WithLabelValues(StatusError)))
}

func TestDisableSuppressesRecording(t *testing.T) {
	Disable()
	defer Enable()

	assert.False(t, IsEnabled())

	before := testutil.ToFloat64(AuthOperationsTotal.WithLabelValues(ActionStart, StatusSuccess))
	RecordAuthOperation(ActionStart, StatusSuccess, 0.01)
	RecordAuthError(ActionStart, "internal")
	RecordSweep(1, 1)
	RecordRewardGrant(true)
	RecordHTTPRequest("POST", "/api/v1/auth/start", "200", 0.01)

	assert.Equal(t, before, testutil.ToFloat64(AuthOperationsTotal.WithLabelValues(ActionStart, StatusSuccess)))
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/auth/complete", "200"))
	RecordHTTPRequest("POST", "/api/v1/auth/complete", "200", 0.1)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/auth/complete", "200"))
	assert.Equal(t, before+1, after)
}
