package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/internal/domain"
)

func TestTemplateCreateValidatesPlaceholders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.templateSvc.Create(ctx, operator(), TemplateInput{
		Identifier: "short_spot", Name: "Short", Type: domain.TemplateTypeSpot,
		Content: "{symbol} {leverage}", IsActive: true,
	})
	require.ErrorIs(t, err, domain.ErrMissingTemplateVariable)

	created, err := h.templateSvc.Create(ctx, operator(), TemplateInput{
		Identifier: "short_spot", Name: "Short", Type: domain.TemplateTypeSpot,
		Content: "{symbol} {side}", IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "short_spot", created.Identifier)

	_, err = h.templateSvc.Create(ctx, operator(), TemplateInput{Identifier: "Bad Id", Name: "x", Type: domain.TemplateTypeSpot, Content: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTemplatePreview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.templateSvc.Preview(ctx, PreviewInput{Identifier: domain.DefaultSpotTemplate})
	require.NoError(t, err)
	assert.Equal(t, "LONG BTCUSDT entry 43250.00 TP1 43509.50 SL 42904.00", out)

	out, err = h.templateSvc.Preview(ctx, PreviewInput{Content: "Hi {name}", Variables: map[string]string{"name": "Ann"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ann", out)

	_, err = h.templateSvc.Preview(ctx, PreviewInput{Content: "Hi {name}", Variables: map[string]string{}})
	assert.ErrorIs(t, err, domain.ErrMissingTemplateVariable)
}

func TestTemplateDeleteInUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	spot, err := h.templateSvc.GetByIdentifier(ctx, domain.DefaultSpotTemplate)
	require.NoError(t, err)

	err = h.templateSvc.Delete(ctx, operator(), spot.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTemplateVariables(t *testing.T) {
	h := newHarness(t)
	vars, err := h.templateSvc.Variables(domain.TemplateTypeBroadcast)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "content", "date"}, vars)

	_, err = h.templateSvc.Variables("sms")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, h.templateSvc.Types(), 4)
}
