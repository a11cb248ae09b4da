package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/validation-engine/internal/model"
	"github.com/ternarybob/validation-engine/internal/writer"
)

func seedWriter(t *testing.T, platform model.Platform, records ...model.ComparisonRecord) *writer.ResultWriter {
	t.Helper()
	w := writer.New(t.TempDir(), platform, uuid.NewString(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, w.Initialize())
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}
	return w
}

func successRecord(productName string, original, discounted int, status model.SaleStatus) model.ComparisonRecord {
	return model.ComparisonRecord{
		ProductSetID: uuid.New(),
		Status:       model.RecordStatusSuccess,
		Fetch: &model.ScannedData{
			ProductName:     productName,
			OriginalPrice:   original,
			DiscountedPrice: discounted,
			SaleStatus:      status,
			Thumbnail:       "https://cdn.example.com/a.jpg",
		},
	}
}

func TestValidateNode_NoIssuesOnCleanRecords(t *testing.T) {
	w := seedWriter(t, "example", successRecord("Tee", 1000, 800, model.SaleStatusOnSale))

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &ValidateNode{}
	result := n.Execute(context.Background(), ValidateInput{}, nc)
	require.True(t, result.Success)

	out := result.Data.(ValidateOutput)
	assert.Equal(t, 1, out.Checked)
	assert.Zero(t, out.Failures)
	assert.Zero(t, out.Warnings)
}

func TestValidateNode_HardFailures(t *testing.T) {
	bad := successRecord("", 1000, 1500, model.SaleStatus("weird"))
	w := seedWriter(t, "example", bad)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &ValidateNode{}
	result := n.Execute(context.Background(), ValidateInput{}, nc)
	require.True(t, result.Success)

	out := result.Data.(ValidateOutput)
	assert.GreaterOrEqual(t, out.Failures, 3) // missing name, bad price order, unknown status
}

func TestValidateNode_StrictEscalatesWarnings(t *testing.T) {
	warn := successRecord("Tee", 1000, 50, model.SaleStatusOnSale) // >90% discount => warning
	w := seedWriter(t, "example", warn)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &ValidateNode{}
	result := n.Execute(context.Background(), ValidateInput{Strict: true}, nc)
	assert.False(t, result.Success)
	assert.Equal(t, "VALIDATION_ERROR", result.Err.Code)
}

func TestValidateNode_NonStrictKeepsWarningsAsWarnings(t *testing.T) {
	warn := successRecord("Tee", 1000, 50, model.SaleStatusOnSale)
	w := seedWriter(t, "example", warn)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &ValidateNode{}
	result := n.Execute(context.Background(), ValidateInput{Strict: false}, nc)
	require.True(t, result.Success)
	out := result.Data.(ValidateOutput)
	assert.Equal(t, 1, out.Warnings)
	assert.Zero(t, out.Failures)
}

func TestValidateNode_SkipsNonSuccessRecords(t *testing.T) {
	failed := model.ComparisonRecord{ProductSetID: uuid.New(), Status: model.RecordStatusFailed}
	w := seedWriter(t, "example", failed)

	nc := testContext(t, "example")
	nc.Shared.SetResultWriter(w)

	n := &ValidateNode{}
	result := n.Execute(context.Background(), ValidateInput{}, nc)
	require.True(t, result.Success)
	assert.Zero(t, result.Data.(ValidateOutput).Checked)
}
