package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeForm_UnmarshalKeepsUnknownSections(t *testing.T) {
	payload := `{
		"personal_info": {"full_name": "Asha Rao", "age": 41},
		"scammer_info": {"phone": "9999999999"},
		"bank_details": {"ifsc": "HDFC0001234"},
		"notes": "called twice"
	}`

	var form IntakeForm
	require.NoError(t, json.Unmarshal([]byte(payload), &form))

	require.NotNil(t, form.PersonalInfo)
	assert.Equal(t, "Asha Rao", form.PersonalInfo.FullName)
	assert.Equal(t, "Asha Rao", form.ReporterName())
	require.NotNil(t, form.ScammerInfo)
	assert.True(t, form.ScammerInfo.HasIdentifiers())

	require.Len(t, form.Legacy, 2)
	assert.JSONEq(t, `{"ifsc": "HDFC0001234"}`, string(form.Legacy["bank_details"]))
	assert.JSONEq(t, `"called twice"`, string(form.Legacy["notes"]))
}

func TestIntakeForm_RoundTripPreservesLegacy(t *testing.T) {
	var form IntakeForm
	require.NoError(t, json.Unmarshal([]byte(`{"extra": 1}`), &form))

	data, err := json.Marshal(form)
	require.NoError(t, err)

	var again IntakeForm
	require.NoError(t, json.Unmarshal(data, &again))
	assert.JSONEq(t, `1`, string(again.Legacy["extra"]))
}

func TestSubmitCaseRequest_SuspectIdentifiers(t *testing.T) {
	req := SubmitCaseRequest{}
	_, ok := req.SuspectIdentifiers()
	assert.False(t, ok)

	req.Form.ScammerInfo = &ScammerIdentifiers{Name: "only a name"}
	_, ok = req.SuspectIdentifiers()
	assert.False(t, ok)

	req.Form.ScammerInfo = &ScammerIdentifiers{Email: "a@b.com"}
	ids, ok := req.SuspectIdentifiers()
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", ids.Email)

	req.Scammer = &ScammerIdentifiers{Phone: "12345"}
	ids, ok = req.SuspectIdentifiers()
	assert.True(t, ok)
	assert.Equal(t, "12345", ids.Phone)
}

func TestPriorityForAmount(t *testing.T) {
	assert.Equal(t, PriorityLow, PriorityForAmount(500))
	assert.Equal(t, PriorityMedium, PriorityForAmount(15000))
	assert.Equal(t, PriorityHigh, PriorityForAmount(250000))
}

func TestNotificationResults_Failed(t *testing.T) {
	results := NotificationResults{
		CategoryTelecom: {Success: true},
		CategoryBanking: {Success: false, Error: "smtp timeout"},
		CategoryNodal:   {Success: false},
	}
	assert.Equal(t, []Category{CategoryBanking, CategoryNodal}, results.Failed())
}
